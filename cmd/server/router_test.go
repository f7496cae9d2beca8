package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/atlas-api/internal/config"
	"github.com/phrazzld/atlas-api/internal/platform/logger"
)

// newTestApplication wires a complete application against temp-dir
// storage with no external integrations. The render binary path points
// nowhere, so submitted jobs fail quickly instead of rendering.
func newTestApplication(t *testing.T) *application {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: config.LoggingConfig{Level: "error", Format: "json"},
		Auth: config.AuthConfig{
			Secret:     "integration-test-secret-0123456789",
			ServiceKey: "internal-frontend-key",
		},
		Quota: config.QuotaConfig{
			DefaultLimit:     50,
			DefaultWindow:    time.Hour,
			HighDemandLimit:  2,
			HighDemandWindow: time.Hour,
		},
		Queue: config.QueueConfig{
			Workers:       1,
			Depth:         16,
			RetentionTTL:  time.Hour,
			StuckAfter:    time.Hour,
			SweepInterval: time.Hour,
			WorkspaceRoot: t.TempDir(),
		},
		Artifacts: config.ArtifactsConfig{
			Backend: "disk",
			Root:    t.TempDir(),
		},
		Generator: config.GeneratorConfig{
			BinPath:    "/nonexistent/atlas-render",
			JobTimeout: time.Minute,
		},
	}

	app, err := newApplication(context.Background(), cfg, logger.New(io.Discard, cfg.Logging))
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	return app
}

func doJSON(t *testing.T, router http.Handler, method, path, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouterPublicEndpoints(t *testing.T) {
	t.Parallel()

	app := newTestApplication(t)
	router := app.setupRouter()

	t.Run("health", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "OK", rr.Body.String())
	})

	t.Run("version", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodGet, "/info/version", "", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, serviceName, body["name"])
		assert.NotEmpty(t, body["version"])
	})

	t.Run("metrics exposition", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodGet, "/metrics", "", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "atlas_tasks_submitted_total")
		assert.Contains(t, rr.Body.String(), "atlas_artifacts_stored")
	})
}

func TestRouterRejectsUnauthenticatedSubmission(t *testing.T) {
	t.Parallel()

	app := newTestApplication(t)
	router := app.setupRouter()

	rr := doJSON(t, router, http.MethodPost, "/terrain/heightmap", "",
		`{"lat":45.28,"lon":20.23,"size":2048}`)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)
}

func TestRouterSubmitAndPollFlow(t *testing.T) {
	t.Parallel()

	app := newTestApplication(t)
	router := app.setupRouter()
	apiKey := app.authority.Issue(7)

	rr := doJSON(t, router, http.MethodPost, "/terrain/heightmap", apiKey,
		`{"lat":45.28,"lon":20.23,"size":2048}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var accepted struct {
		Success bool   `json:"success"`
		TaskID  string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))
	assert.True(t, accepted.Success)
	require.NotEmpty(t, accepted.TaskID)

	// The render binary does not exist, so the worker fails the job.
	require.Eventually(t, func() bool {
		return app.queue.Stats().Failed == 1
	}, 5*time.Second, 10*time.Millisecond)

	poll := doJSON(t, router, http.MethodPost, "/task/get", apiKey,
		fmt.Sprintf(`{"task_id":%q}`, accepted.TaskID))
	require.Equal(t, http.StatusOK, poll.Code)
	assert.Contains(t, poll.Body.String(), `"success":false`)
	assert.Contains(t, poll.Body.String(), `"status":"failed"`)

	// Failed records stay fetchable until the retention sweep.
	again := doJSON(t, router, http.MethodPost, "/task/get", apiKey,
		fmt.Sprintf(`{"task_id":%q}`, accepted.TaskID))
	assert.Equal(t, http.StatusOK, again.Code)
	assert.Contains(t, again.Body.String(), `"status":"failed"`)

	status := doJSON(t, router, http.MethodGet, "/queue/status", apiKey, "")
	require.Equal(t, http.StatusOK, status.Code)
	assert.Contains(t, status.Body.String(), accepted.TaskID[:8])
	assert.NotContains(t, status.Body.String(), accepted.TaskID)
}

func TestRouterPollUnknownTask(t *testing.T) {
	t.Parallel()

	app := newTestApplication(t)
	router := app.setupRouter()
	apiKey := app.authority.Issue(3)

	rr := doJSON(t, router, http.MethodPost, "/task/get", apiKey,
		`{"task_id":"0123456789abcdef0123456789abcdef"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)
	assert.Contains(t, rr.Body.String(), "Task ID not found or has expired.")
}

func TestRouterKeyValidation(t *testing.T) {
	t.Parallel()

	app := newTestApplication(t)
	router := app.setupRouter()

	t.Run("issued user key", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodPost, "/keys/validate", app.authority.Issue(42), "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"valid":true`)
		assert.Contains(t, rr.Body.String(), `"user_id":42`)
	})

	t.Run("service key", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodPost, "/keys/validate", "internal-frontend-key", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"service":true`)
	})

	t.Run("garbage key", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodPost, "/keys/validate", "not-a-key", "")
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), `"valid":false`)
	})
}

func TestRouterHighDemandQuota(t *testing.T) {
	t.Parallel()

	app := newTestApplication(t)
	router := app.setupRouter()
	apiKey := app.authority.Issue(11)
	body := `{"lat":10.5,"lon":20.5,"size":2048}`

	for i := 0; i < 2; i++ {
		rr := doJSON(t, router, http.MethodPost, "/map/bundle", apiKey, body)
		require.Equal(t, http.StatusAccepted, rr.Code, "request %d: %s", i, rr.Body.String())
	}

	rr := doJSON(t, router, http.MethodPost, "/map/bundle", apiKey, body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// The default class keeps its own budget, so other routes still admit.
	other := doJSON(t, router, http.MethodPost, "/mesh/water", apiKey, body)
	assert.Equal(t, http.StatusAccepted, other.Code)
}

func TestRouterProvidersRequireAuth(t *testing.T) {
	t.Parallel()

	app := newTestApplication(t)
	router := app.setupRouter()

	unauthed := doJSON(t, router, http.MethodPost, "/providers/list", "", `{"lat":45.0,"lon":20.0}`)
	assert.Equal(t, http.StatusUnauthorized, unauthed.Code)

	rr := doJSON(t, router, http.MethodPost, "/providers/list", app.authority.Issue(5),
		`{"lat":45.0,"lon":20.0}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "["), "expected a bare provider array")
}
