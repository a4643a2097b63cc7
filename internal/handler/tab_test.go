package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vibecoding/internal/executor"
	"github.com/sakif/vibecoding/internal/handler"
	"github.com/sakif/vibecoding/internal/model"
	"github.com/sakif/vibecoding/internal/repository/sqlite"
	"github.com/sakif/vibecoding/internal/service"
)

func newTabRouter(t *testing.T, exec executor.Executor) http.Handler {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := discardLogger()
	h := handler.NewTabHandler(service.NewTabService(db, exec, logger), logger)

	r := chi.NewRouter()
	r.Get("/api/tabs", h.HandleList)
	r.Post("/api/tabs", h.HandleCreate)
	r.Get("/api/tabs/{id}", h.HandleGet)
	r.Put("/api/tabs/{id}", h.HandleUpdate)
	r.Delete("/api/tabs/{id}", h.HandleClose)
	r.Post("/api/tabs/{id}/run", h.HandleRun)
	r.Delete("/api/tabs/{id}/output", h.HandleClearOutput)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeTab(t *testing.T, rr *httptest.ResponseRecorder) model.Tab {
	t.Helper()
	var tab model.Tab
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tab))
	return tab
}

func TestTabHandler_Lifecycle(t *testing.T) {
	r := newTabRouter(t, &MockExecutor{})

	rr := do(t, r, http.MethodPost, "/api/tabs", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	first := decodeTab(t, rr)
	assert.Equal(t, "Tab 1", first.Title)
	assert.Equal(t, service.WelcomeCode, first.Code)

	rr = do(t, r, http.MethodPost, "/api/tabs", `{"title":"scratch","code":""}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	second := decodeTab(t, rr)
	assert.Equal(t, "scratch", second.Title)
	assert.Empty(t, second.Code)

	rr = do(t, r, http.MethodGet, "/api/tabs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var tabs []model.Tab
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tabs))
	require.Len(t, tabs, 2)
	assert.Equal(t, first.ID, tabs[0].ID)
	assert.Equal(t, second.ID, tabs[1].ID)

	rr = do(t, r, http.MethodPut, "/api/tabs/"+second.ID, `{"title":"","code":"Console.WriteLine(1);"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decodeTab(t, rr)
	assert.Equal(t, "scratch", updated.Title)
	assert.Equal(t, "Console.WriteLine(1);", updated.Code)

	rr = do(t, r, http.MethodGet, "/api/tabs/"+second.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Console.WriteLine(1);", decodeTab(t, rr).Code)

	rr = do(t, r, http.MethodDelete, "/api/tabs/"+second.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, r, http.MethodGet, "/api/tabs/"+second.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTabHandler_LastTabCannotBeClosed(t *testing.T) {
	r := newTabRouter(t, &MockExecutor{})

	rr := do(t, r, http.MethodPost, "/api/tabs", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	only := decodeTab(t, rr)

	rr = do(t, r, http.MethodDelete, "/api/tabs/"+only.ID, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "conflict", body.Error)
}

func TestTabHandler_RunAndClearOutput(t *testing.T) {
	mockExec := &MockExecutor{
		ReturnRes: executor.ExecutionResult{Success: true, Output: "42\n", Status: executor.StatusOK},
	}
	r := newTabRouter(t, mockExec)

	rr := do(t, r, http.MethodPost, "/api/tabs", `{"code":"Console.WriteLine(42);"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	tab := decodeTab(t, rr)

	rr = do(t, r, http.MethodPost, "/api/tabs/"+tab.ID+"/run", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var run handler.RunResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&run))
	assert.True(t, run.Result.Success)
	assert.Equal(t, "Console.WriteLine(42);", mockExec.CapturedReq.Code)
	require.NotNil(t, run.Tab)
	assert.Equal(t, executor.ResultHeader+"42\n", run.Tab.Output)

	rr = do(t, r, http.MethodDelete, "/api/tabs/"+tab.ID+"/output", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeTab(t, rr).Output)
}

func TestTabHandler_Errors(t *testing.T) {
	r := newTabRouter(t, &MockExecutor{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   string
	}{
		{"get missing", http.MethodGet, "/api/tabs/nope", "", http.StatusNotFound, "not_found"},
		{"run missing", http.MethodPost, "/api/tabs/nope/run", "", http.StatusNotFound, "not_found"},
		{"update malformed", http.MethodPut, "/api/tabs/nope", `{`, http.StatusBadRequest, "invalid_json"},
		{"create malformed", http.MethodPost, "/api/tabs", `[1,`, http.StatusBadRequest, "invalid_json"},
		{
			"title too long", http.MethodPost, "/api/tabs",
			`{"title":"` + string(bytes.Repeat([]byte("x"), service.MaxTitleLength+1)) + `"}`,
			http.StatusBadRequest, "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code)

			var body handler.ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.kind, body.Error)
		})
	}
}
