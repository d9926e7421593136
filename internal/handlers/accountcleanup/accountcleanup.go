// Package accountcleanup deletes users who have been inactive for 30 days.
package accountcleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/generics/batchprocessor"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	"github.com/outofoffice3/aws-samples/hermes/internal/userdir"
)

const (
	// error msgs
	DirectoryNilErrMsg = "user directory is nil"

	DefaultInactiveLimit = 30 * 24 * time.Hour
	// deleteBatchSize is the most uids handed to one bulk delete.
	deleteBatchSize = 1000
)

// ErrNoActivity marks a user with no creation, sign-in or refresh time.
var ErrNoActivity = errors.New("user has no activity timestamps")

// CleanupHandler pages through the directory and bulk-deletes inactive users.
type CleanupHandler struct {
	Directory     userdir.Directory
	InactiveLimit time.Duration
	Now           func() time.Time
	Logger        logger.Logger
}

type CleanupHandlerConfig struct {
	Directory     userdir.Directory
	InactiveLimit time.Duration
	Now           func() time.Time
	Logger        logger.Logger
}

func NewCleanupHandler(config CleanupHandlerConfig) (*CleanupHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Directory == nil {
		return nil, handlers.LogAndReturnError(errors.New(DirectoryNilErrMsg), config.Logger)
	}
	if config.InactiveLimit <= 0 {
		config.InactiveLimit = DefaultInactiveLimit
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &CleanupHandler{
		Directory:     config.Directory,
		InactiveLimit: config.InactiveLimit,
		Now:           config.Now,
		Logger:        config.Logger,
	}, nil
}

// Register binds the daily cleanup schedule.
func (h *CleanupHandler) Register(r *registry.Registry) error {
	const name = "accountcleanup"
	return r.Register(registry.Registration{
		Kind:    event.ScheduleAccountCleanup,
		Name:    name,
		Style:   registry.StyleTrigger,
		Handler: registry.Trigger(name, h.HandleSchedule, h.Logger),
	})
}

// LastSeen is the most recent refresh, else sign-in, else creation time.
func LastSeen(u userdir.User) (time.Time, error) {
	switch {
	case !u.LastRefresh.IsZero():
		return u.LastRefresh, nil
	case !u.LastSignIn.IsZero():
		return u.LastSignIn, nil
	case !u.Created.IsZero():
		return u.Created, nil
	}
	return time.Time{}, ErrNoActivity
}

// IsInactive reports whether u was last seen at least limit before now.
func IsInactive(u userdir.User, limit time.Duration, now time.Time) (bool, error) {
	seen, err := LastSeen(u)
	if err != nil {
		return false, err
	}
	return now.Sub(seen) >= limit, nil
}

// HandleSchedule runs one cleanup pass.
func (h *CleanupHandler) HandleSchedule(ctx context.Context, env event.Envelope) error {
	now := h.Now()
	bp := batchprocessor.NewGenericBatchProcessor(ctx, batchprocessor.Config[userdir.User, string]{
		MaxBatchSize: deleteBatchSize,
		MapFunc: func(u userdir.User) (string, error) {
			inactive, err := IsInactive(u, h.InactiveLimit, now)
			if err != nil {
				return "", fmt.Errorf("user %s: %w", u.UID, err)
			}
			if !inactive {
				return "", batchprocessor.ErrSkip
			}
			return u.UID, nil
		},
		FlushFunc: h.deleteBatch,
		Logger:    h.Logger,
	})

	var listErr error
	token := ""
	for {
		page, err := h.Directory.List(ctx, token)
		if err != nil {
			listErr = err
			break
		}
		for uid, perr := range page.Invalid {
			h.Logger.Warn("skipping user %s: %v", uid, perr)
		}
		for _, u := range page.Users {
			bp.Add(u)
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	stats, flushErr := bp.Wait()
	h.Logger.Info("account cleanup: checked %d users, deleted %d", stats.Added, stats.Flushed)
	return errors.Join(listErr, flushErr)
}

func (h *CleanupHandler) deleteBatch(ctx context.Context, uids []string) error {
	res, err := h.Directory.Delete(ctx, uids)
	if err != nil {
		return err
	}
	for uid, ferr := range res.Failures {
		h.Logger.Warn("failed to delete user %s: %v", uid, ferr)
	}
	if len(res.Failures) > 0 {
		return fmt.Errorf("%d of %d deletions failed", len(res.Failures), len(uids))
	}
	return nil
}
