package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/task-manager-be/internal/metrics"
	"github.com/isdelr/task-manager-be/internal/services"
)

// TaskHandler handles HTTP requests for the caller's tasks.
type TaskHandler struct {
	service services.TaskServiceProvider
	metrics metrics.Recorder
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service services.TaskServiceProvider, recorder metrics.Recorder) *TaskHandler {
	return &TaskHandler{service: service, metrics: recorder}
}

// Create handles creating a task owned by the caller.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.service.Create(r.Context(), currentUser(r).ID, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.RecordTaskCreated()
	writeJSON(w, http.StatusCreated, task)
}

// ListMine handles listing the caller's tasks with the filter, paging and
// sort options of the query string.
func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.List(r.Context(), currentUser(r).ID, services.ParseTaskQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Get handles retrieving one of the caller's tasks.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Get(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Update handles a partial update of one of the caller's tasks.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.service.Update(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete handles deleting one of the caller's tasks.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Delete(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
