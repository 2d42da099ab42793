package backend

import (
	"context"
	"fmt"

	"github.com/soulbridge/soulbridge/internal/importer"
)

// BeetsImporter adapts the beets executor to the MusicImporter
// capability.
type BeetsImporter struct {
	executor *importer.BeetsExecutor
}

// NewBeetsImporter wraps a beets executor.
func NewBeetsImporter(executor *importer.BeetsExecutor) *BeetsImporter {
	return &BeetsImporter{executor: executor}
}

func (b *BeetsImporter) Name() string {
	return "beets"
}

func (b *BeetsImporter) Import(ctx context.Context, sources []string, asAlbum bool) error {
	result := b.executor.Import(ctx, sources, asAlbum)
	switch result.Outcome {
	case importer.OutcomeSuccess, importer.OutcomeSkipped:
		return nil
	default:
		return fmt.Errorf("import %s: %s", result.Outcome, result.Reason)
	}
}
