package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/vibecoding/internal/executor"
	"github.com/sakif/vibecoding/internal/model"
	"github.com/sakif/vibecoding/internal/service"
)

// TabHandler serves the /api/tabs resource.
type TabHandler struct {
	tabs   *service.TabService
	logger *slog.Logger
}

// NewTabHandler creates a TabHandler.
func NewTabHandler(tabs *service.TabService, logger *slog.Logger) *TabHandler {
	return &TabHandler{tabs: tabs, logger: logger}
}

type createTabRequest struct {
	Title string  `json:"title"`
	Code  *string `json:"code"`
}

type updateTabRequest struct {
	Title string `json:"title"`
	Code  string `json:"code"`
}

// RunResponse pairs the updated tab with the raw execution result.
type RunResponse struct {
	Tab    *model.Tab               `json:"tab"`
	Result executor.ExecutionResult `json:"result"`
}

// HandleList handles GET /api/tabs?limit=&offset=.
func (h *TabHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tabs, err := h.tabs.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tabs)
}

// HandleCreate handles POST /api/tabs. An empty body opens a default tab.
func (h *TabHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTabRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	tab, err := h.tabs.Create(r.Context(), service.CreateTabInput{Title: req.Title, Code: req.Code})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tab)
}

// HandleGet handles GET /api/tabs/{id}.
func (h *TabHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tab, err := h.tabs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tab)
}

// HandleUpdate handles PUT /api/tabs/{id}.
func (h *TabHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateTabRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tab, err := h.tabs.Update(r.Context(), chi.URLParam(r, "id"), req.Title, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tab)
}

// HandleClose handles DELETE /api/tabs/{id}.
func (h *TabHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.tabs.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRun handles POST /api/tabs/{id}/run.
func (h *TabHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	tab, result, err := h.tabs.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{Tab: tab, Result: result})
}

// HandleClearOutput handles DELETE /api/tabs/{id}/output.
func (h *TabHandler) HandleClearOutput(w http.ResponseWriter, r *http.Request) {
	tab, err := h.tabs.ClearOutput(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tab)
}
