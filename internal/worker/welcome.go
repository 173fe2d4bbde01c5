package worker

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/queue"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/users"
)

// Welcomer greets newly registered users. Delivery is a log line.
type Welcomer struct {
	users  users.Repository
	logger logging.Logger
}

func NewWelcomer(u users.Repository, l logging.Logger) *Welcomer {
	return &Welcomer{users: u, logger: l.With("module", "welcomer")}
}

// Handle is a queue.Handler for queue.UserQueue.
func (w *Welcomer) Handle(ctx context.Context, d queue.Delivery) error {
	err := w.handle(ctx, d)
	welcomeJobsTotal.WithLabelValues(jobResult(err, queue.IsPermanent(err))).Inc()
	if err != nil {
		w.logger.Warn(ctx, "welcome job", "job_id", d.ID, "attempt", d.Attempt, "error", err)
	}
	return err
}

func (w *Welcomer) handle(ctx context.Context, d queue.Delivery) error {
	var job models.WelcomeJob
	if err := d.Decode(&job); err != nil {
		return err
	}
	if job.UserID == 0 {
		return queue.Permanent(common.NewMissingFieldError("userId"))
	}

	u, err := w.users.GetByID(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("user %d: %w", job.UserID, err)
	}

	w.logger.Info(ctx, fmt.Sprintf("Welcome %s!", u.Email), "user_id", u.ID)
	return nil
}
