package syncer

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/shaibs3/canvascache/internal/apperrors"
	"github.com/shaibs3/canvascache/internal/canvas"
)

const (
	kindPage         = "page"
	kindFile         = "file"
	kindEmbeddedFile = "embedded_file"
)

// WalkStats summarizes one item walk
type WalkStats struct {
	Pages   int
	Files   int
	Skipped int
}

func (s WalkStats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("pages", s.Pages)
	enc.AddInt("files", s.Files)
	enc.AddInt("skipped", s.Skipped)
	return nil
}

// itemOutcome is everything fetched for one item, waiting to be written
type itemOutcome struct {
	item    canvas.Item
	page    *canvas.Page
	files   []canvas.File
	skipped int
}

// walk fetches every item of tree and then writes the results in tree order.
// Fetch failures are logged and skipped; store failures abort the walk.
// Callers hold the snapshot's lock.
func (e *Engine) walk(ctx context.Context, snapshotID int64, client canvas.API, tree canvas.Tree) (WalkStats, error) {
	logger := e.logger.With(zap.Int64("snapshot_id", snapshotID))
	items := tree.Items()
	outcomes := make([]itemOutcome, len(items))

	// a plain group: one item failing must never cancel its siblings
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, item := range items {
		g.Go(func() error {
			outcomes[i] = e.fetchItem(ctx, logger, client, item)
			return nil
		})
	}
	_ = g.Wait()

	var stats WalkStats
	for _, o := range outcomes {
		stats.Skipped += o.skipped
		if o.page != nil {
			if err := e.store.InsertPage(ctx, o.item.ID, o.page.Title, canvas.ItemTypePage, o.page.Body); err != nil {
				return stats, err
			}
			stats.Pages++
		}
		for _, f := range o.files {
			if err := e.store.InsertFile(ctx, o.item.ID, f.DisplayName, f.URL); err != nil {
				return stats, err
			}
			stats.Files++
		}
	}
	return stats, nil
}

func (e *Engine) fetchItem(ctx context.Context, logger *zap.Logger, client canvas.API, item canvas.Item) itemOutcome {
	out := itemOutcome{item: item}
	if item.URL == "" {
		return out
	}

	switch item.Type {
	case canvas.ItemTypePage:
		page, err := client.FetchPage(ctx, item.URL)
		if err != nil {
			out.skipped++
			e.skip(ctx, logger, &apperrors.ItemFetchError{Kind: kindPage, ItemID: item.ID, URL: item.URL, Err: err})
			return out
		}
		out.page = page
		e.metrics.recordItem(ctx, kindPage, "stored")

		endpoints, err := canvas.ExtractFileEndpoints(page.Body)
		if err != nil {
			out.skipped++
			e.skip(ctx, logger, &apperrors.ItemFetchError{Kind: kindEmbeddedFile, ItemID: item.ID, URL: item.URL, Err: err})
			return out
		}
		for _, endpoint := range endpoints {
			file, err := client.ResolveFileLink(ctx, endpoint)
			if err != nil {
				out.skipped++
				e.skip(ctx, logger, &apperrors.ItemFetchError{Kind: kindEmbeddedFile, ItemID: item.ID, URL: endpoint, Err: err})
				continue
			}
			out.files = append(out.files, *file)
			e.metrics.recordItem(ctx, kindEmbeddedFile, "stored")
		}

	case canvas.ItemTypeFile:
		file, err := client.ResolveFileLink(ctx, item.URL)
		if err != nil {
			out.skipped++
			e.skip(ctx, logger, &apperrors.ItemFetchError{Kind: kindFile, ItemID: item.ID, URL: item.URL, Err: err})
			return out
		}
		out.files = append(out.files, *file)
		e.metrics.recordItem(ctx, kindFile, "stored")
	}
	return out
}

func (e *Engine) skip(ctx context.Context, logger *zap.Logger, err *apperrors.ItemFetchError) {
	e.metrics.recordItem(ctx, err.Kind, "skipped")
	logger.Warn("skipping item",
		zap.String("kind", err.Kind),
		zap.Int64("item_id", err.ItemID),
		zap.String("url", err.URL),
		zap.Error(err.Err))
}
