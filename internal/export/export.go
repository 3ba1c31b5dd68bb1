package export

import (
	"context"
	"fmt"

	"github.com/takak2166/notionblog/internal/logger"
	"github.com/takak2166/notionblog/internal/models"
	"github.com/takak2166/notionblog/internal/outline"
	"go.uber.org/multierr"
)

// Source supplies published posts and their content graphs
type Source interface {
	ListPosts(ctx context.Context) ([]models.Post, error)
	FetchContent(ctx context.Context, pageID string) ([]string, models.Graph, error)
}

// Localizer rewrites remote image URLs to local copies
type Localizer interface {
	Localize(ctx context.Context, rawURL string) string
}

// Sink receives the exported records
type Sink interface {
	Replace(records []models.PostRecord) error
}

// Stats summarizes an export run
type Stats struct {
	Total    int
	Exported int
	Failed   int
}

// Run exports every published post from src into dst.
// Posts that fail are skipped and their errors returned together; the rest are still written.
// When every post fails the previous contents of dst are left untouched.
func Run(ctx context.Context, src Source, images Localizer, dst Sink) (Stats, error) {
	var stats Stats

	posts, err := src.ListPosts(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list posts: %w", err)
	}
	stats.Total = len(posts)
	logger.Info("Exporting posts", logger.Fields{"count": stats.Total})

	var errs error
	records := make([]models.PostRecord, 0, len(posts))
	seen := make(map[string]string, len(posts))

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if other, ok := seen[post.Slug]; ok {
			stats.Failed++
			errs = multierr.Append(errs, fmt.Errorf("post %s: slug %q already used by %s", post.ID, post.Slug, other))
			continue
		}

		record, err := exportPost(ctx, src, images, post)
		if err != nil {
			stats.Failed++
			logger.Error("Failed to export post", err, logger.Fields{"id": post.ID, "slug": post.Slug})
			errs = multierr.Append(errs, fmt.Errorf("post %s: %w", post.ID, err))
			continue
		}

		seen[post.Slug] = post.ID
		records = append(records, record)
		logger.Debug("Exported post", logger.Fields{"slug": post.Slug, "headings": len(outline.Flatten(record.Outline))})
	}

	if len(records) == 0 && stats.Total > 0 {
		return stats, multierr.Append(errs, fmt.Errorf("no posts exported"))
	}

	if err := dst.Replace(records); err != nil {
		return stats, multierr.Append(errs, fmt.Errorf("failed to write posts: %w", err))
	}
	stats.Exported = len(records)

	logger.Info("Export finished", logger.Fields{
		"total":    stats.Total,
		"exported": stats.Exported,
		"failed":   stats.Failed,
	})

	return stats, errs
}

func exportPost(ctx context.Context, src Source, images Localizer, post models.Post) (models.PostRecord, error) {
	refs, graph, err := src.FetchContent(ctx, post.ID)
	if err != nil {
		return models.PostRecord{}, fmt.Errorf("failed to fetch content: %w", err)
	}

	if post.Cover != "" && images != nil {
		post.Cover = images.Localize(ctx, post.Cover)
	}

	return models.PostRecord{
		Post:    post,
		Outline: outline.Build(refs, graph),
	}, nil
}
