package httpapi

import (
	"net/http"
	"strconv"

	"cx-go/internal/cx"
)

// Handler serves the project, rules and export API.
type Handler struct {
	projects *cx.ProjectService
	exports  *cx.ExportService
	history  cx.History
	logger   cx.Logger
}

// NewHandler creates a Handler. history may be nil, in which case the
// export run listing is not served.
func NewHandler(projects *cx.ProjectService, exports *cx.ExportService, history cx.History, logger cx.Logger) *Handler {
	return &Handler{
		projects: projects,
		exports:  exports,
		history:  history,
		logger:   logger,
	}
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /api/projects", h.ListProjects)
	mux.HandleFunc("POST /api/projects", h.CreateProject)
	mux.HandleFunc("GET /api/projects/{id}", h.GetProject)
	mux.HandleFunc("PUT /api/projects/{id}", h.UpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", h.DeleteProject)
	mux.HandleFunc("POST /api/projects/{id}/export", h.ExportProject)

	mux.HandleFunc("GET /api/codebase-rules/{projectId}", h.GetRules)
	mux.HandleFunc("PUT /api/codebase-rules/{projectId}", h.SaveRules)

	mux.HandleFunc("POST /api/export-codebase", h.ExportCodebase)
	if h.history != nil {
		mux.HandleFunc("GET /api/export-runs", h.ListExportRuns)
	}

	return mux
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListProjects returns all projects.
// GET /api/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListProjects(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "projects": projects})
}

// CreateProject registers a project.
// POST /api/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req cx.CreateProjectRequest
	if err := ParseJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}

	project, err := h.projects.CreateProject(r.Context(), req)
	if err != nil {
		handleError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "project": project})
}

// GetProject returns one project.
// GET /api/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "project": project})
}

// UpdateProject applies a partial update. Absent and null fields are left
// unchanged.
// PUT /api/projects/{id}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req cx.UpdateProjectRequest
	if err := ParseJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}

	project, err := h.projects.UpdateProject(r.Context(), r.PathValue("id"), req)
	if err != nil {
		handleError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "project": project})
}

// DeleteProject removes a project and its rules.
// DELETE /api/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.DeleteProject(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "deletedProject": project})
}

// GetRules returns stored or default rules.
// GET /api/codebase-rules/{projectId}
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.projects.GetRules(r.Context(), r.PathValue("projectId"))
	if err != nil {
		handleError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "rules": rules})
}

// SaveRules upserts the rules of an existing project.
// PUT /api/codebase-rules/{projectId}
func (h *Handler) SaveRules(w http.ResponseWriter, r *http.Request) {
	var in cx.RulesInput
	if err := ParseJSON(w, r, &in); err != nil {
		handleError(w, err)
		return
	}

	rules, err := h.projects.SaveRules(r.Context(), r.PathValue("projectId"), in)
	if err != nil {
		handleError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "rules": rules})
}

// ExportCodebase runs an export described entirely by the request body.
// POST /api/export-codebase
func (h *Handler) ExportCodebase(w http.ResponseWriter, r *http.Request) {
	var req cx.ExportRequest
	if err := ParseJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}

	summary, err := h.exports.Export(r.Context(), req, nil)
	if err != nil {
		handleError(w, err)
		return
	}
	respondExport(w, summary)
}

// ExportProject exports a stored project with its saved or default rules.
// POST /api/projects/{id}/export
func (h *Handler) ExportProject(w http.ResponseWriter, r *http.Request) {
	summary, err := h.exports.ExportCodebase(r.Context(), r.PathValue("id"), nil)
	if err != nil {
		handleError(w, err)
		return
	}
	respondExport(w, summary)
}

// ListExportRuns returns recent export runs, newest first.
// GET /api/export-runs?limit=N
func (h *Handler) ListExportRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.history.ListExportRuns(limit)
	if err != nil {
		handleError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "runs": runs})
}

// exportResponse is the body returned by both export endpoints.
type exportResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	FilesCount int      `json:"filesCount"`
	ExportPath string   `json:"exportPath"`
	Timestamp  string   `json:"timestamp"`
	Bytes      int64    `json:"bytes"`
	Warnings   []string `json:"warnings,omitempty"`
}

func respondExport(w http.ResponseWriter, s *cx.ExportSummary) {
	RespondJSON(w, http.StatusOK, exportResponse{
		Success:    true,
		Message:    "Codebase exported successfully to " + s.OutputPath,
		FilesCount: s.FilesCount,
		ExportPath: s.OutputPath,
		Timestamp:  s.Timestamp,
		Bytes:      s.Bytes,
		Warnings:   s.Warnings,
	})
}
