package importer

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/soulbridge/soulbridge/internal/slskd"
)

// Executor runs one external import invocation.
type Executor interface {
	Import(ctx context.Context, sources []string, asAlbum bool) ImportResult
}

// Sink receives the import lifecycle states for each transfer.
type Sink interface {
	PublishTransfer(username string, record slskd.TransferRecord)
}

// Config controls where completed downloads are found and how they are
// handed to the import tool.
type Config struct {
	// DownloadRoot is the gateway's completed downloads directory.
	DownloadRoot string
	// AlbumMode groups files by directory and imports each directory
	// as one release.
	AlbumMode bool
}

// Orchestrator turns completed transfer records into import
// invocations, publishing state transitions and cleaning up sources
// that the importer rejected.
type Orchestrator struct {
	fs       afero.Fs
	executor Executor
	sink     Sink
	config   Config
	logger   zerolog.Logger
}

// NewOrchestrator wires an import executor to a filesystem and a
// status sink.
func NewOrchestrator(fs afero.Fs, executor Executor, sink Sink, config Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		fs:       fs,
		executor: executor,
		sink:     sink,
		config:   config,
		logger:   logger.With().Str("component", "importer").Logger(),
	}
}

// resolved pairs a transfer record with its on-disk location.
type resolved struct {
	record slskd.TransferRecord
	path   string
}

// ProcessCompleted imports the given completed transfers. In album
// mode files sharing a directory are imported together; files sitting
// directly in the download root fall back to singleton imports so a
// stray file cannot drag a whole release match.
func (o *Orchestrator) ProcessCompleted(ctx context.Context, records []slskd.TransferRecord) {
	var files []resolved
	for _, record := range records {
		path, err := ResolvePath(o.fs, o.config.DownloadRoot, record.Filename)
		if err != nil {
			o.logger.Warn().
				Str("filename", record.Filename).
				Err(err).
				Msg("could not locate completed download")
			o.publish(record, slskd.StateImportFailed, "Could not resolve file path")
			continue
		}
		files = append(files, resolved{record: record, path: path})
	}
	if len(files) == 0 {
		return
	}

	if !o.config.AlbumMode {
		for _, f := range files {
			o.importGroup(ctx, []resolved{f}, false)
		}
		return
	}

	// Group by parent directory, preserving first-seen order.
	var dirOrder []string
	groups := make(map[string][]resolved)
	for _, f := range files {
		dir := filepath.Dir(f.path)
		if _, ok := groups[dir]; !ok {
			dirOrder = append(dirOrder, dir)
		}
		groups[dir] = append(groups[dir], f)
	}

	root := filepath.Clean(o.config.DownloadRoot)
	for _, dir := range dirOrder {
		group := groups[dir]
		if filepath.Clean(dir) == root {
			// Loose files with no release directory of their own.
			for _, f := range group {
				o.importGroup(ctx, []resolved{f}, false)
			}
			continue
		}
		o.importGroup(ctx, group, true)
	}
}

func (o *Orchestrator) importGroup(ctx context.Context, group []resolved, asAlbum bool) {
	sources := make([]string, len(group))
	for i, f := range group {
		sources[i] = f.path
		o.publish(f.record, slskd.StateImporting, "")
	}

	result := o.executor.Import(ctx, sources, asAlbum)

	switch result.Outcome {
	case OutcomeSuccess:
		for _, f := range group {
			o.publish(f.record, slskd.StateImported, "")
		}
	case OutcomeSkipped:
		for _, f := range group {
			o.publish(f.record, slskd.StateImportSkip, result.Reason)
		}
		o.cleanup(sources)
	default:
		for _, f := range group {
			o.publish(f.record, slskd.StateImportFailed, result.Reason)
		}
		o.cleanup(sources)
	}
}

func (o *Orchestrator) publish(record slskd.TransferRecord, state slskd.TransferState, reason string) {
	record.States = slskd.TransferStates{slskd.StateCompleted, state}
	if reason != "" {
		record.Exception = reason
	}
	o.sink.PublishTransfer(record.Username, record)
}

// cleanup removes sources the importer did not consume, then prunes
// directories left empty. The download root itself is never removed.
func (o *Orchestrator) cleanup(sources []string) {
	root := filepath.Clean(o.config.DownloadRoot)
	for _, path := range sources {
		if err := o.fs.Remove(path); err != nil {
			o.logger.Debug().Str("path", path).Err(err).Msg("cleanup failed")
			continue
		}
		dir := filepath.Clean(filepath.Dir(path))
		for dir != root && dir != "." && dir != string(filepath.Separator) {
			entries, err := afero.ReadDir(o.fs, dir)
			if err != nil || len(entries) > 0 {
				break
			}
			if err := o.fs.Remove(dir); err != nil {
				break
			}
			dir = filepath.Clean(filepath.Dir(dir))
		}
	}
}
