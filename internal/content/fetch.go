package content

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"hifz-quiz-service/internal/domain"
)

// maxParallelPages bounds concurrent page requests for multi-page sessions.
const maxParallelPages = 4

// PageLoader is anything that can return the ayahs of a page.
type PageLoader interface {
	LoadPage(ctx context.Context, page int) ([]domain.Ayah, error)
}

// FetchPages loads pages concurrently and concatenates them in page order.
// A page that fails is logged and left out; an empty result means nothing
// could be loaded.
func FetchPages(ctx context.Context, loader PageLoader, pages []int) []domain.Ayah {
	results := make([][]domain.Ayah, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelPages)
	for i, page := range pages {
		i, page := i, page
		g.Go(func() error {
			ayahs, err := loader.LoadPage(gctx, page)
			if err != nil {
				slog.Warn("page content unavailable", "page", page, "error", err)
				return nil
			}
			results[i] = ayahs
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.Ayah
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}
