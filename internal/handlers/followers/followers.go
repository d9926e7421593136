// Package followers notifies a user's devices when someone follows them.
package followers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/generics/safemap"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/push"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	"github.com/outofoffice3/aws-samples/hermes/internal/rtdb"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/userdir"
)

const (
	// error msgs
	TreeNilErrMsg      = "realtime database is nil"
	DirectoryNilErrMsg = "user directory is nil"
	SenderNilErrMsg    = "push sender is nil"

	NotificationTitle = "You have a new follower!"
)

// FollowerHandler sends "new follower" notifications.
type FollowerHandler struct {
	Tree      rtdb.Tree
	Directory userdir.Directory
	Sender    push.Sender
	Logger    logger.Logger
}

type FollowerHandlerConfig struct {
	Tree      rtdb.Tree
	Directory userdir.Directory
	Sender    push.Sender
	Logger    logger.Logger
}

func NewFollowerHandler(config FollowerHandlerConfig) (*FollowerHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	switch {
	case config.Tree == nil:
		return nil, handlers.LogAndReturnError(errors.New(TreeNilErrMsg), config.Logger)
	case config.Directory == nil:
		return nil, handlers.LogAndReturnError(errors.New(DirectoryNilErrMsg), config.Logger)
	case config.Sender == nil:
		return nil, handlers.LogAndReturnError(errors.New(SenderNilErrMsg), config.Logger)
	}
	return &FollowerHandler{
		Tree:      config.Tree,
		Directory: config.Directory,
		Sender:    config.Sender,
		Logger:    config.Logger,
	}, nil
}

// Register binds the follower write trigger.
func (h *FollowerHandler) Register(r *registry.Registry) error {
	const name = "sendfollowernotification"
	return r.Register(registry.Registration{
		Kind:    event.FollowerWritten,
		Name:    name,
		Style:   registry.StyleTrigger,
		Handler: registry.Trigger(name, h.HandleFollowerWritten, h.Logger),
	})
}

// TokensPath is where a user's device tokens are kept.
func TokensPath(uid string) string {
	return rtdb.Join("users", uid, "notificationTokens")
}

// HandleFollowerWritten reacts to /followers/{followedUid}/{followerUid}.
func (h *FollowerHandler) HandleFollowerWritten(ctx context.Context, env event.Envelope) error {
	followerUID, err := env.Param("followerUid")
	if err != nil {
		return err
	}
	followedUID, err := env.Param("followedUid")
	if err != nil {
		return err
	}
	change, err := event.Decode[sharedtypes.Change](env)
	if err != nil {
		return err
	}
	if !sharedtypes.Exists(change.After) {
		h.Logger.Info("User %s unfollowed user %s :(", followerUID, followedUID)
		return nil
	}
	h.Logger.Info("User %s is now following user %s", followerUID, followedUID)

	tokens, err := h.Tree.Children(ctx, TokensPath(followedUID))
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		h.Logger.Info("There are no tokens to send notifications to.")
		return nil
	}
	h.Logger.Info("There are %d tokens to send notifications to.", len(tokens))

	follower, err := h.Directory.Get(ctx, followerUID)
	if err != nil {
		return fmt.Errorf("look up follower %s: %w", followerUID, err)
	}
	n := push.Notification{
		Title:    NotificationTitle,
		Body:     fmt.Sprintf("%s is now following you.", follower.DisplayName),
		ImageURL: follower.PhotoURL,
	}

	var results safemap.TypedMap[push.Result]
	var wg sync.WaitGroup
	for token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			id, err := h.Sender.Send(ctx, token, n)
			results.Store(token, push.Result{Token: token, MessageID: id, Err: err})
		}(token)
	}
	wg.Wait()

	failed := results.Filter(func(r push.Result) bool { return r.Err != nil })
	h.Logger.Debug("Sent %d of %d notifications", len(tokens)-len(failed), len(tokens))
	if len(failed) == 0 {
		return nil
	}
	var stale []string
	for _, token := range failed {
		res, _ := results.Load(token)
		if !push.IsStaleToken(res.Err) {
			h.Logger.Warn("Failure sending notification to %s: %v", res.Token, res.Err)
			continue
		}
		stale = append(stale, token)
	}
	if len(stale) == 0 {
		return nil
	}
	if err := h.Tree.RemoveChildren(ctx, TokensPath(followedUID), stale...); err != nil {
		return err
	}
	h.Logger.Info("Removed %d stale tokens", len(stale))
	return nil
}
