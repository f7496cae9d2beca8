package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/atlas-api/internal/api/shared"
	"github.com/phrazzld/atlas-api/internal/artifact"
	"github.com/phrazzld/atlas-api/internal/auth"
	"github.com/phrazzld/atlas-api/internal/generation"
	"github.com/phrazzld/atlas-api/internal/task"
)

// fakeTaskService satisfies TaskService with canned responses. Shared by
// the handler tests in this package.
type fakeTaskService struct {
	submitID  string
	submitErr error
	view      *task.View
	fetchErr  error
	stats     task.Stats

	lastSubmission task.Submission
}

func (f *fakeTaskService) Submit(_ context.Context, sub task.Submission) (string, error) {
	f.lastSubmission = sub
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitID, nil
}

func (f *fakeTaskService) Fetch(context.Context, string) (*task.View, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.view, nil
}

func (f *fakeTaskService) Stats() task.Stats {
	return f.stats
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// authedTaskRequest builds a POST /task/get carrying an authenticated
// identity, the way requests arrive past the middleware chain.
func authedTaskRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/task/get", strings.NewReader(body))
	return req.WithContext(shared.WithIdentity(req.Context(), auth.Identity{UserID: 42}))
}

func TestGetTaskRequiresIdentity(t *testing.T) {
	t.Parallel()

	handler := NewTaskHandler(&fakeTaskService{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/task/get", strings.NewReader(`{"task_id":"abc"}`))
	recorder := httptest.NewRecorder()

	handler.GetTask(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Invalid or missing API key")
}

func TestGetTaskInvalidBody(t *testing.T) {
	t.Parallel()

	handler := NewTaskHandler(&fakeTaskService{}, discardLogger())

	recorder := httptest.NewRecorder()
	handler.GetTask(recorder, authedTaskRequest(`{"task_id":`))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Invalid request format")
}

func TestGetTaskMissingTaskID(t *testing.T) {
	t.Parallel()

	handler := NewTaskHandler(&fakeTaskService{}, discardLogger())

	recorder := httptest.NewRecorder()
	handler.GetTask(recorder, authedTaskRequest(`{}`))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "TaskID")
}

func TestGetTaskNotFound(t *testing.T) {
	t.Parallel()

	svc := &fakeTaskService{fetchErr: fmt.Errorf("%w: abc", task.ErrTaskNotFound)}
	handler := NewTaskHandler(svc, discardLogger())

	recorder := httptest.NewRecorder()
	handler.GetTask(recorder, authedTaskRequest(`{"task_id":"abc"}`))

	// A miss is a normal polling answer, not an HTTP failure.
	assert.Equal(t, http.StatusOK, recorder.Code)

	var resp TaskStatusResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, TaskNotFoundDescription, resp.Description)
	assert.NotContains(t, recorder.Body.String(), `"status"`)
}

func TestGetTaskPending(t *testing.T) {
	t.Parallel()

	svc := &fakeTaskService{view: &task.View{
		ID:            "abc",
		Status:        task.StatusPending,
		QueuePosition: 3,
		EstimatedWait: 90 * time.Second,
	}}
	handler := NewTaskHandler(svc, discardLogger())

	recorder := httptest.NewRecorder()
	handler.GetTask(recorder, authedTaskRequest(`{"task_id":"abc"}`))

	assert.Equal(t, http.StatusOK, recorder.Code)

	var resp TaskStatusResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, 3, resp.QueuePosition)
	assert.InDelta(t, 90, resp.EstimatedWaitSeconds, 0.001)
}

func TestGetTaskRunning(t *testing.T) {
	t.Parallel()

	svc := &fakeTaskService{view: &task.View{ID: "abc", Status: task.StatusRunning}}
	handler := NewTaskHandler(svc, discardLogger())

	recorder := httptest.NewRecorder()
	handler.GetTask(recorder, authedTaskRequest(`{"task_id":"abc"}`))

	assert.Equal(t, http.StatusOK, recorder.Code)

	var resp TaskStatusResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "running", resp.Status)
	assert.NotContains(t, recorder.Body.String(), "queue_position")
}

func TestGetTaskFailed(t *testing.T) {
	t.Parallel()

	svc := &fakeTaskService{view: &task.View{
		ID:     "abc",
		Status: task.StatusFailed,
		Error:  &task.TaskError{Kind: task.ErrorKindJob, Message: "render failed: no elevation data for extent"},
	}}
	handler := NewTaskHandler(svc, discardLogger())

	recorder := httptest.NewRecorder()
	handler.GetTask(recorder, authedTaskRequest(`{"task_id":"abc"}`))

	assert.Equal(t, http.StatusOK, recorder.Code)

	var resp TaskStatusResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, "render failed: no elevation data for extent", resp.Description)
}

func TestGetTaskStoreTrouble(t *testing.T) {
	t.Parallel()

	svc := &fakeTaskService{fetchErr: errors.New("open artifact: input/output error")}
	handler := NewTaskHandler(svc, discardLogger())

	recorder := httptest.NewRecorder()
	handler.GetTask(recorder, authedTaskRequest(`{"task_id":"abc"}`))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "An unexpected error occurred")
	assert.NotContains(t, recorder.Body.String(), "input/output error")
}

// fileGenerator writes a fixed blob into the workspace, standing in for
// the render toolchain.
type fileGenerator struct {
	filename string
	content  []byte
}

func (g *fileGenerator) Generate(_ context.Context, job generation.Job) ([]generation.Output, error) {
	path := filepath.Join(job.Workspace, g.filename)
	if err := os.WriteFile(path, g.content, 0o600); err != nil {
		return nil, err
	}
	return []generation.Output{{Path: path, Filename: g.filename, ContentType: "image/png"}}, nil
}

// End-to-end fetch through a real queue and disk store: the artifact is
// streamed once with download headers and the record is gone afterwards.
func TestGetTaskStreamsArtifactOnce(t *testing.T) {
	t.Parallel()

	content := []byte("png-bytes-standing-in-for-a-heightmap")

	store, err := artifact.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	registry := generation.NewRegistry()
	registry.Register(generation.KindTerrain, &fileGenerator{filename: "heightmap.png", content: content})

	queue := task.NewQueue(task.Config{
		Workers:       1,
		QueueDepth:    4,
		WorkspaceRoot: t.TempDir(),
	}, store, registry, nil, nil, discardLogger())
	queue.Start()
	t.Cleanup(queue.Stop)

	taskID, err := queue.Submit(context.Background(), task.Submission{
		Kind:    generation.KindTerrain,
		Owner:   "42",
		Request: json.RawMessage(`{"lat":45.5,"lon":-122.6,"size":2048}`),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return queue.Stats().Succeeded == 1
	}, 5*time.Second, 10*time.Millisecond, "task never finished")

	handler := NewTaskHandler(queue, discardLogger())

	recorder := httptest.NewRecorder()
	handler.GetTask(recorder, authedTaskRequest(`{"task_id":"`+taskID+`"}`))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "image/png", recorder.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="heightmap.png"`, recorder.Header().Get("Content-Disposition"))
	assert.Equal(t, strconv.Itoa(len(content)), recorder.Header().Get("Content-Length"))
	assert.Equal(t, content, recorder.Body.Bytes())

	// The fetch purged the task; a repeat poll reports a miss.
	recorder = httptest.NewRecorder()
	handler.GetTask(recorder, authedTaskRequest(`{"task_id":"`+taskID+`"}`))

	assert.Equal(t, http.StatusOK, recorder.Code)

	var resp TaskStatusResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, TaskNotFoundDescription, resp.Description)
}
