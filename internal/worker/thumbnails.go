// Package worker consumes background jobs: image derivatives from the file
// queue and welcome messages from the user queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/imagex"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/queue"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
	"golang.org/x/sync/errgroup"
)

// Thumbnailer renders the fixed-width derivatives of uploaded images.
// Derivatives are written with Put under keys derived from the original,
// so a redelivered job overwrites its own output and nothing else.
type Thumbnailer struct {
	files  files.Repository
	blobs  blobstore.Store
	sizes  []int
	logger logging.Logger
}

func NewThumbnailer(f files.Repository, b blobstore.Store, l logging.Logger) *Thumbnailer {
	return &Thumbnailer{
		files:  f,
		blobs:  b,
		sizes:  models.ThumbnailSizes,
		logger: l.With("module", "thumbnailer"),
	}
}

// Handle is a queue.Handler for queue.FileQueue.
func (t *Thumbnailer) Handle(ctx context.Context, d queue.Delivery) error {
	start := time.Now()
	skipped, err := t.handle(ctx, d)

	result := jobResult(err, queue.IsPermanent(err))
	switch {
	case skipped:
		result = "skipped"
	case err == nil:
		thumbnailDuration.Observe(time.Since(start).Seconds())
	}
	thumbnailJobsTotal.WithLabelValues(result).Inc()

	if err != nil {
		t.logger.Warn(ctx, "thumbnail job failed", "job_id", d.ID, "attempt", d.Attempt, "result", result, "error", err)
	} else {
		t.logger.Info(ctx, "thumbnail job", "job_id", d.ID, "attempt", d.Attempt, "result", result)
	}
	return err
}

// handle reports skipped for jobs that name a non-image entity.
func (t *Thumbnailer) handle(ctx context.Context, d queue.Delivery) (skipped bool, err error) {
	var job models.ThumbnailJob
	if err := d.Decode(&job); err != nil {
		return false, err
	}
	if job.FileID == 0 {
		return false, queue.Permanent(common.NewMissingFieldError("fileId"))
	}
	if job.UserID == 0 {
		return false, queue.Permanent(common.NewMissingFieldError("userId"))
	}

	// a missing record may still be replicating; let the broker retry
	f, err := t.files.GetByIDAndOwner(ctx, job.FileID, job.UserID)
	if err != nil {
		return false, fmt.Errorf("file %d: %w", job.FileID, err)
	}
	if f.Type != models.FileTypeImage {
		return true, nil
	}

	return false, t.render(ctx, f)
}

func (t *Thumbnailer) render(ctx context.Context, f *models.File) error {
	src, err := t.blobs.Get(ctx, f.StorageKey)
	if err != nil {
		return fmt.Errorf("read original %d: %w", f.ID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, size := range t.sizes {
		size := size
		g.Go(func() error {
			out, err := imagex.Resize(src, size)
			if err != nil {
				if errors.Is(err, imagex.ErrUndecodable) {
					return queue.Permanent(err)
				}
				return fmt.Errorf("resize %d: %w", size, err)
			}
			if err := t.blobs.Put(gctx, blobstore.DerivativeKey(f.StorageKey, size), out); err != nil {
				return fmt.Errorf("write derivative %d: %w", size, err)
			}
			return nil
		})
	}
	return g.Wait()
}
