// Package rendertool runs generation jobs through the external
// rendering binary. The adapter hands the tool a JSON job file and an
// output directory, then trusts the tool's manifest for what was
// produced; it never interprets the rendered payloads.
package rendertool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/atlas-api/internal/config"
	"github.com/phrazzld/atlas-api/internal/generation"
	"github.com/phrazzld/atlas-api/internal/safepath"
)

// ErrRenderFailed indicates the rendering binary reported a failure:
// nonzero exit, timeout, or a broken output manifest.
var ErrRenderFailed = errors.New("render failed")

// stderrTailLimit bounds how much tool stderr is carried into errors
// and logs.
const stderrTailLimit = 400

// Runner implements generation.Generator by invoking the configured
// rendering binary once per job. It is safe for concurrent use; each
// invocation works inside the job's private workspace.
type Runner struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a Runner from configuration.
func New(cfg config.GeneratorConfig, logger *slog.Logger) *Runner {
	return &Runner{
		bin:     cfg.BinPath,
		timeout: cfg.JobTimeout,
		logger:  logger.With("component", "rendertool"),
	}
}

// jobSpec is the file handed to the tool via --job.
type jobSpec struct {
	TaskID  string          `json:"task_id"`
	Kind    string          `json:"kind"`
	Request json.RawMessage `json:"request"`
}

// manifestEntry is one line of the manifest.json the tool writes into
// its output directory.
type manifestEntry struct {
	File        string `json:"file"`
	ContentType string `json:"content_type"`
}

// Generate implements generation.Generator.
func (r *Runner) Generate(ctx context.Context, job generation.Job) ([]generation.Output, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	jobPath := filepath.Join(job.Workspace, "job.json")
	spec, err := json.Marshal(jobSpec{
		TaskID:  job.TaskID,
		Kind:    string(job.Kind),
		Request: job.Request,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding job spec: %w", err)
	}
	if err := os.WriteFile(jobPath, spec, 0o644); err != nil {
		return nil, fmt.Errorf("writing job spec: %w", err)
	}

	outDir := filepath.Join(job.Workspace, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.bin, "--job", jobPath, "--out", outDir)
	cmd.Dir = job.Workspace
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: timed out after %s", ErrRenderFailed, r.timeout)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			detail := tail(stderr.String())
			r.logger.Error("render tool failed",
				"task_id", job.TaskID,
				"kind", job.Kind,
				"exit_code", exitErr.ExitCode(),
				"stderr", detail)
			return nil, fmt.Errorf("%w: exit code %d: %s", ErrRenderFailed, exitErr.ExitCode(), detail)
		}
		return nil, fmt.Errorf("starting render tool %s: %w", r.bin, runErr)
	}

	r.logger.Debug("render tool finished",
		"task_id", job.TaskID,
		"kind", job.Kind,
		"duration", time.Since(start))
	return collectOutputs(outDir)
}

// collectOutputs reads the tool's manifest and resolves the declared
// files, rejecting names that would escape the output directory.
func collectOutputs(outDir string) ([]generation.Output, error) {
	data, err := os.ReadFile(filepath.Join(outDir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: reading output manifest: %v", ErrRenderFailed, err)
	}
	var entries []manifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding output manifest: %v", ErrRenderFailed, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: manifest declares no outputs", ErrRenderFailed)
	}

	outputs := make([]generation.Output, 0, len(entries))
	for _, e := range entries {
		if err := safepath.CheckFilename(e.File); err != nil {
			return nil, fmt.Errorf("%w: manifest entry %q: %v", ErrRenderFailed, e.File, err)
		}
		path, err := safepath.Join(outDir, e.File)
		if err != nil {
			return nil, fmt.Errorf("%w: manifest entry %q: %v", ErrRenderFailed, e.File, err)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: declared output missing: %s", ErrRenderFailed, e.File)
		}
		ct := e.ContentType
		if ct == "" {
			ct = contentTypeFor(e.File)
		}
		outputs = append(outputs, generation.Output{
			Path:        path,
			Filename:    e.File,
			ContentType: ct,
		})
	}
	return outputs, nil
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTailLimit {
		return s
	}
	return "..." + s[len(s)-stderrTailLimit:]
}
