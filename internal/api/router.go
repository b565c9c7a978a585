package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/task-manager-be/internal/api/handlers"
	"github.com/isdelr/task-manager-be/internal/auth"
	"github.com/isdelr/task-manager-be/internal/errs"
	"github.com/isdelr/task-manager-be/internal/metrics"
	"github.com/isdelr/task-manager-be/internal/services"
	"github.com/isdelr/task-manager-be/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	DB             handlers.Pinger
	Users          services.UserServiceProvider
	Tasks          services.TaskServiceProvider
	Authenticator  *auth.Authenticator
	Hub            *websocket.Hub
	Metrics        metrics.Recorder
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Metrics))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errs.Write(w, errs.NotFound("route"))
	})

	// Initialize handlers
	userHandler := handlers.NewUserHandler(deps.Users, deps.Metrics, deps.Hub)
	taskHandler := handlers.NewTaskHandler(deps.Tasks, deps.Metrics)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.AllowedOrigins)
	healthHandler := handlers.NewHealthHandler(deps.DB)
	requireSession := deps.Authenticator.Middleware

	r.Get("/healthz", healthHandler.Check)
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	r.Route("/users", func(r chi.Router) {
		r.Post("/", userHandler.Signup)
		r.Post("/login", userHandler.Login)
		r.Get("/{id}/avatar", userHandler.GetAvatar)

		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/logout", userHandler.Logout)
			r.Post("/logoutAll", userHandler.LogoutAll)
			r.Get("/me", userHandler.GetMe)
			r.Patch("/me", userHandler.UpdateMe)
			r.Delete("/me", userHandler.DeleteMe)
			r.Post("/me/avatar", userHandler.UploadAvatar)
			r.Delete("/me/avatar", userHandler.DeleteAvatar)

			// Addressed by id; only the caller's own id resolves.
			r.With(handlers.SelfOnly).Get("/{id}", userHandler.GetMe)
			r.With(handlers.SelfOnly).Patch("/{id}", userHandler.UpdateMe)
			r.With(handlers.SelfOnly).Delete("/{id}", userHandler.DeleteMe)
		})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(requireSession)
		r.Post("/", taskHandler.Create)
		r.Get("/me", taskHandler.ListMine)
		r.Get("/events", wsHandler.Serve)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", taskHandler.Get)
			r.Patch("/", taskHandler.Update)
			r.Delete("/", taskHandler.Delete)

			// Aliases kept for older clients; scoped exactly the same way.
			r.Get("/me", taskHandler.Get)
			r.Patch("/me", taskHandler.Update)
			r.Delete("/me", taskHandler.Delete)
		})
	})

	return r
}
