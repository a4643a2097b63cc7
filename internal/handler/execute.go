// Package handler translates HTTP requests into service calls and results into
// JSON replies.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/vibecoding/internal/executor"
)

// ExecuteHandler runs ad-hoc code outside of any tab.
type ExecuteHandler struct {
	exec   executor.Executor
	logger *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(exec executor.Executor, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		exec:   exec,
		logger: logger,
	}
}

// HandleExecute runs the posted code and replies with the ExecutionResult.
//
// Every pipeline outcome, including "No code provided.", compile errors and
// timeouts, is a 200: the result itself says whether the run succeeded. Only a
// body that is not JSON is rejected.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executor.ExecutionRequest
	if !decodeJSON(w, r, &req) {
		h.logger.WarnContext(r.Context(), "invalid execution request body")
		return
	}

	result := h.exec.Execute(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}
