package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/ourslists/internal/model"
	"github.com/dukerupert/ourslists/internal/project"
)

type ProjectHandler struct {
	svc    *project.Service
	logger *slog.Logger
}

func NewProjectHandler(svc *project.Service, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, logger: logger}
}

type createProjectRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// CreateProject handles POST /api/spaces/{space_id}/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProject(r.Context(), r.PathValue("space_id"), req.Name, req.Color)
	if err != nil {
		writeServiceError(w, h.logger, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Projects handles GET /api/spaces/{space_id}/projects
func (h *ProjectHandler) Projects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.Projects(r.Context(), r.PathValue("space_id"))
	if err != nil {
		writeServiceError(w, h.logger, "list projects", err)
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

// Archive handles POST /api/projects/{id}/archive
func (h *ProjectHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.SetArchived(r.Context(), r.PathValue("id"), req.Archived)
	if err != nil {
		writeServiceError(w, h.logger, "archive project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /api/projects/{id}
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, "delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTasks handles GET /api/projects/{id}/tasks
func (h *ProjectHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.List(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	Title      string     `json:"title" validate:"required,max=200"`
	Note       string     `json:"note" validate:"max=2000"`
	Priority   *int       `json:"priority" validate:"omitempty,gte=0,lte=2"`
	AssignedTo string     `json:"assigned_to" validate:"max=100"`
	DueDate    *time.Time `json:"due_date"`
}

// CreateTask handles POST /api/projects/{id}/tasks
func (h *ProjectHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decode(w, r, &req) {
		return
	}
	priority := model.PriorityMedium
	if req.Priority != nil {
		priority = model.TaskPriority(*req.Priority)
	}
	t, err := h.svc.Create(r.Context(), r.PathValue("id"), project.NewTask{
		Title:      req.Title,
		Note:       req.Note,
		Priority:   priority,
		AssignedTo: req.AssignedTo,
		DueDate:    req.DueDate,
	})
	if err != nil {
		writeServiceError(w, h.logger, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type dueRequest struct {
	DueDate *time.Time `json:"due_date"`
}

// SetDue handles PUT /api/tasks/{id}/due. A null due_date clears it.
func (h *ProjectHandler) SetDue(w http.ResponseWriter, r *http.Request) {
	var req dueRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.svc.SetDue(r.Context(), r.PathValue("id"), req.DueDate)
	if err != nil {
		writeServiceError(w, h.logger, "set due date", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ToggleTask handles POST /api/tasks/{id}/toggle
func (h *ProjectHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.ToggleComplete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "toggle task", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTask handles DELETE /api/tasks/{id}
func (h *ProjectHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, "delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
