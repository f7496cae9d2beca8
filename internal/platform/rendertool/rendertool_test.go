package rendertool

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/atlas-api/internal/config"
	"github.com/phrazzld/atlas-api/internal/generation"
)

// writeTool installs a shell script standing in for the render binary.
func writeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stand-in for the render binary requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "atlas-render")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func newRunner(t *testing.T, bin string, timeout time.Duration) *Runner {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(config.GeneratorConfig{BinPath: bin, JobTimeout: timeout}, logger)
}

func terrainJob(t *testing.T) generation.Job {
	t.Helper()
	return generation.Job{
		TaskID:    "t0000000000000001",
		Kind:      generation.KindTerrain,
		Request:   json.RawMessage(`{"lat":45.28,"lon":20.23,"size":2048}`),
		Workspace: t.TempDir(),
	}
}

func TestGenerateRunsToolAndCollectsOutputs(t *testing.T) {
	t.Parallel()

	bin := writeTool(t, `
out="$4"
printf 'dem-bytes' > "$out/heightmap.png"
cat > "$out/manifest.json" <<'EOF'
[{"file":"heightmap.png","content_type":"image/png"}]
EOF
`)
	r := newRunner(t, bin, 5*time.Second)
	job := terrainJob(t)

	outputs, err := r.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "heightmap.png", outputs[0].Filename)
	assert.Equal(t, "image/png", outputs[0].ContentType)

	data, err := os.ReadFile(outputs[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "dem-bytes", string(data))

	// The job spec was written for the tool to read.
	spec, err := os.ReadFile(filepath.Join(job.Workspace, "job.json"))
	require.NoError(t, err)
	assert.Contains(t, string(spec), `"kind":"terrain"`)
}

func TestGenerateDefaultsContentType(t *testing.T) {
	t.Parallel()

	bin := writeTool(t, `
out="$4"
printf 'blob' > "$out/tiles.qqq"
printf '[{"file":"tiles.qqq"}]' > "$out/manifest.json"
`)
	r := newRunner(t, bin, 5*time.Second)

	outputs, err := r.Generate(context.Background(), terrainJob(t))
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "application/octet-stream", outputs[0].ContentType)
}

func TestGenerateMapsExitCodeToRenderFailure(t *testing.T) {
	t.Parallel()

	bin := writeTool(t, `
echo 'no elevation data for tile' >&2
exit 3
`)
	r := newRunner(t, bin, 5*time.Second)

	_, err := r.Generate(context.Background(), terrainJob(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderFailed)
	assert.Contains(t, err.Error(), "exit code 3")
	assert.Contains(t, err.Error(), "no elevation data for tile")
}

func TestGenerateTimesOut(t *testing.T) {
	t.Parallel()

	bin := writeTool(t, `sleep 5`)
	r := newRunner(t, bin, 100*time.Millisecond)

	_, err := r.Generate(context.Background(), terrainJob(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderFailed)
	assert.Contains(t, err.Error(), "timed out")
}

func TestGenerateMissingBinary(t *testing.T) {
	t.Parallel()

	r := newRunner(t, filepath.Join(t.TempDir(), "not-there"), time.Second)

	_, err := r.Generate(context.Background(), terrainJob(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRenderFailed)
	assert.Contains(t, err.Error(), "starting render tool")
}

func TestCollectOutputsRejectsUnsafeManifest(t *testing.T) {
	t.Parallel()

	t.Run("escaping filename", func(t *testing.T) {
		t.Parallel()
		outDir := t.TempDir()
		require.NoError(t, os.WriteFile(
			filepath.Join(outDir, "manifest.json"),
			[]byte(`[{"file":"../../etc/passwd"}]`), 0o644))

		_, err := collectOutputs(outDir)
		assert.ErrorIs(t, err, ErrRenderFailed)
	})

	t.Run("declared file missing", func(t *testing.T) {
		t.Parallel()
		outDir := t.TempDir()
		require.NoError(t, os.WriteFile(
			filepath.Join(outDir, "manifest.json"),
			[]byte(`[{"file":"ghost.png"}]`), 0o644))

		_, err := collectOutputs(outDir)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRenderFailed)
		assert.Contains(t, err.Error(), "declared output missing")
	})

	t.Run("empty manifest", func(t *testing.T) {
		t.Parallel()
		outDir := t.TempDir()
		require.NoError(t, os.WriteFile(
			filepath.Join(outDir, "manifest.json"), []byte(`[]`), 0o644))

		_, err := collectOutputs(outDir)
		assert.ErrorIs(t, err, ErrRenderFailed)
	})

	t.Run("manifest absent", func(t *testing.T) {
		t.Parallel()
		_, err := collectOutputs(t.TempDir())
		assert.ErrorIs(t, err, ErrRenderFailed)
	})
}
