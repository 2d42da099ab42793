package importer

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// importTimeout bounds one beets invocation. Exceeding it is a
// classified outcome, not a fatal error.
const importTimeout = 5 * time.Minute

// Outcome classifies one import invocation.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSkipped
	OutcomeFailed
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// ImportResult carries the outcome and a human-readable reason for
// failures.
type ImportResult struct {
	Outcome Outcome
	Reason  string
}

// BeetsConfig holds the external tool's invocation settings.
type BeetsConfig struct {
	// ConfigPath is the beets configuration file passed via -c.
	ConfigPath string
	// TargetDir is the music library destination directory.
	TargetDir string
}

// BeetsExecutor invokes beets as a black-box subprocess and classifies
// its result from the exit status and output text.
type BeetsExecutor struct {
	config BeetsConfig
	logger zerolog.Logger

	// run is swapped in tests; the default execs the real binary.
	run func(ctx context.Context, args []string) (stdout, stderr string, err error)
}

// NewBeetsExecutor creates an executor for the configured library.
func NewBeetsExecutor(config BeetsConfig, logger zerolog.Logger) *BeetsExecutor {
	e := &BeetsExecutor{
		config: config,
		logger: logger.With().Str("component", "beets").Logger(),
	}
	e.run = e.execBeets
	return e
}

func (e *BeetsExecutor) execBeets(ctx context.Context, args []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "beet", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Import runs one quiet beets import over the given source paths.
// asAlbum false adds the singleton flag so loose files are not forced
// into album matches.
func (e *BeetsExecutor) Import(ctx context.Context, sources []string, asAlbum bool) ImportResult {
	args := []string{
		"-c", e.config.ConfigPath,
		"-l", filepath.Join(e.config.TargetDir, ".beets_library.db"),
		"-d", e.config.TargetDir,
		"import", "-q",
	}
	if !asAlbum {
		args = append(args, "-s")
	}
	args = append(args, sources...)

	runCtx, cancel := context.WithTimeout(ctx, importTimeout)
	defer cancel()

	e.logger.Info().
		Int("sources", len(sources)).
		Bool("asAlbum", asAlbum).
		Msg("starting beets import")

	stdout, stderr, err := e.run(runCtx, args)
	combined := stdout + "\n" + stderr

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		e.logger.Warn().Msg("beets import timed out")
		return ImportResult{Outcome: OutcomeTimedOut, Reason: "import timed out"}
	}

	if err != nil {
		reason := strings.TrimSpace(stderr)
		if reason == "" {
			reason = strings.TrimSpace(stdout)
		}
		if reason == "" {
			reason = err.Error()
		}
		e.logger.Warn().Str("reason", reason).Msg("beets import failed")
		return ImportResult{Outcome: OutcomeFailed, Reason: reason}
	}

	// Beets reports unmatched or duplicate items by skipping them.
	lowered := strings.ToLower(combined)
	if strings.Contains(lowered, "skipping") || strings.Contains(lowered, "skip") {
		return ImportResult{Outcome: OutcomeSkipped, Reason: "beets skipped the import"}
	}

	return ImportResult{Outcome: OutcomeSuccess}
}
