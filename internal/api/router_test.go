package api

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/isdelr/task-manager-be/internal/auth"
	"github.com/isdelr/task-manager-be/internal/avatar"
	"github.com/isdelr/task-manager-be/internal/database"
	"github.com/isdelr/task-manager-be/internal/metrics"
	"github.com/isdelr/task-manager-be/internal/models"
	"github.com/isdelr/task-manager-be/internal/services"
	"github.com/isdelr/task-manager-be/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	handler http.Handler
	db      *sql.DB
	users   *services.UserService
	tasks   *services.TaskService
	hub     *websocket.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	tokens := auth.NewTokenIssuer("test-secret", 0)
	users := services.NewUserService(db, auth.NewBcryptHasher(bcrypt.MinCost), tokens, avatar.NewSQLStore(db), 0)

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	tasks := services.NewTaskService(db, hub)
	reg := prometheus.NewRegistry()

	handler := NewRouter(Dependencies{
		DB:            db,
		Users:         users,
		Tasks:         tasks,
		Authenticator: auth.NewAuthenticator(tokens, users),
		Hub:           hub,
		Metrics:       metrics.NewCollector(reg),
		Gatherer:      reg,
	})
	return &testEnv{handler: handler, db: db, users: users, tasks: tasks, hub: hub}
}

func (e *testEnv) signup(t *testing.T, name, email string) models.Session {
	t.Helper()
	session, err := e.users.Signup(context.Background(), name, email, "MyPass777!")
	require.NoError(t, err)
	return session
}

func (e *testEnv) createTask(t *testing.T, ownerID, body string) models.Task {
	t.Helper()
	var task models.Task
	apitest.Handler(e.handler).
		Post("/tasks").
		Header("Authorization", "Bearer "+e.sessionToken(t, ownerID)).
		JSON(body).
		Expect(t).
		Status(http.StatusCreated).
		End().
		JSON(&task)
	return task
}

// sessionToken returns the newest session token of the user.
func (e *testEnv) sessionToken(t *testing.T, userID string) string {
	t.Helper()
	var token string
	require.NoError(t, e.db.QueryRow(
		`SELECT token FROM user_tokens WHERE user_id = ? ORDER BY seq DESC LIMIT 1`, userID).Scan(&token))
	return token
}

func (e *testEnv) sessionTokens(t *testing.T, userID string) []string {
	t.Helper()
	rows, err := e.db.Query(`SELECT token FROM user_tokens WHERE user_id = ? ORDER BY seq`, userID)
	require.NoError(t, err)
	defer rows.Close()
	var tokens []string
	for rows.Next() {
		var tok string
		require.NoError(t, rows.Scan(&tok))
		tokens = append(tokens, tok)
	}
	require.NoError(t, rows.Err())
	return tokens
}

func bearer(token string) string {
	return "Bearer " + token
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	apitest.Handler(env.handler).
		Get("/healthz").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.status", "ok")).
		End()
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Mike", "mike@example.com")

	apitest.Handler(env.handler).Get("/users/me").Expect(t).Status(http.StatusUnauthorized).End()

	apitest.Handler(env.handler).
		Get("/metrics").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(res *http.Response, _ *http.Request) error {
			return expectBodyContains(res, `task_manager_http_requests_total{method="GET",route="/users/me",status="401"} 1`)
		}).
		End()
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	apitest.Handler(env.handler).
		Get("/nope").
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"code":"NOT_FOUND","message":"route not found"}`).
		End()
}

// Every protected route answers 401 without a session and changes nothing.
func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signup(t, "Mike", "mike@example.com")
	task := env.createTask(t, owner.User.ID, `{"description": "keep me"}`)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/users/" + owner.User.ID},
		{http.MethodPatch, "/users/" + owner.User.ID},
		{http.MethodDelete, "/users/" + owner.User.ID},
		{http.MethodPost, "/users/logout"},
		{http.MethodPost, "/users/logoutAll"},
		{http.MethodGet, "/users/me"},
		{http.MethodPatch, "/users/me"},
		{http.MethodDelete, "/users/me"},
		{http.MethodPost, "/users/me/avatar"},
		{http.MethodDelete, "/users/me/avatar"},
		{http.MethodPost, "/tasks"},
		{http.MethodGet, "/tasks/me"},
		{http.MethodGet, "/tasks/events"},
		{http.MethodGet, "/tasks/" + task.ID},
		{http.MethodPatch, "/tasks/" + task.ID},
		{http.MethodDelete, "/tasks/" + task.ID},
		{http.MethodGet, "/tasks/" + task.ID + "/me"},
		{http.MethodPatch, "/tasks/" + task.ID + "/me"},
		{http.MethodDelete, "/tasks/" + task.ID + "/me"},
	}
	for _, headers := range []map[string]string{
		{},
		{"Authorization": "Bearer not-a-token"},
		{"Authorization": owner.Token},
	} {
		for _, rt := range routes {
			apitest.Handler(env.handler).
				Method(rt.method).
				URL(rt.path).
				Headers(headers).
				JSON(`{"description": "hijacked", "name": "hijacked"}`).
				Expect(t).
				Status(http.StatusUnauthorized).
				Assert(jsonpath.Equal("$.code", "UNAUTHENTICATED")).
				End()
		}
	}

	got, err := env.tasks.Get(context.Background(), owner.User.ID, task.ID)
	require.NoError(t, err)
	require.Equal(t, "keep me", got.Description)
	user, err := env.users.GetUserByID(context.Background(), owner.User.ID)
	require.NoError(t, err)
	require.Equal(t, "Mike", user.Name)
	require.Len(t, env.sessionTokens(t, owner.User.ID), 1)
}
