package client

import (
	"context"
	"errors"
	"strings"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/queue"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/surface"
)

// Session ties the API client to the attention queue and the surface
// navigator for one supervising human. Decisions apply the known state
// transition locally first and reconcile with the server afterwards: a
// conflict forces a refresh, a transport failure rolls the local change
// back so no decision is silently lost.
type Session struct {
	api       *Client
	queue     *queue.Queue
	navigator *surface.Navigator
}

func NewSession(api *Client) *Session {
	return &Session{
		api:       api,
		queue:     queue.New(api),
		navigator: surface.New(),
	}
}

func (s *Session) Queue() *queue.Queue {
	return s.queue
}

func (s *Session) Navigator() *surface.Navigator {
	return s.navigator
}

// Refresh rebuilds the queue from server truth.
func (s *Session) Refresh(ctx context.Context) ([]model.AttentionItem, error) {
	return s.queue.Refresh(ctx)
}

// StartNext claims the queue head for review and focuses it. ok=false
// means the queue is idle.
func (s *Session) StartNext(ctx context.Context) (model.AttentionItem, bool, error) {
	item, ok := s.queue.Next()
	if !ok {
		s.navigator.AfterDecision(nil)
		return model.AttentionItem{}, false, nil
	}

	if _, err := s.api.Claim(ctx, item.DeliverableID, item.VersionID); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			// Someone else holds a fresh claim; drop the item locally
			// and let the next refresh reconcile.
			s.queue.Remove(item.VersionID)
			return model.AttentionItem{}, false, err
		}
		return model.AttentionItem{}, false, err
	}

	s.navigator.StartReview(item)
	return item, true, nil
}

// Skip rotates past the current head without touching version state.
func (s *Session) Skip() (model.AttentionItem, bool) {
	s.queue.Skip()
	item, ok := s.queue.Next()
	if ok {
		s.navigator.StartReview(item)
	}
	return item, ok
}

// Approve commits an approval for the version under review. The queue
// item is removed optimistically and focus advances; a transport failure
// restores both so the human can retry with their edits intact.
func (s *Session) Approve(ctx context.Context, finalContent *string) (*model.Version, error) {
	state := s.navigator.Current()
	if state.Surface != surface.SurfaceReview {
		return nil, &ValidationError{Field: "review", Reason: "no version is under review"}
	}

	snapshot := s.queue.Items()
	s.advancePast(state.VersionID)

	v, err := s.api.Approve(ctx, state.DeliverableID, state.VersionID, finalContent)
	if err != nil {
		s.reconcileFailure(ctx, err, state, snapshot)
		return nil, err
	}
	return v, nil
}

// Reject commits a rejection. Empty notes fail before any local or
// network effect.
func (s *Session) Reject(ctx context.Context, feedbackNotes string) (*model.Version, error) {
	state := s.navigator.Current()
	if state.Surface != surface.SurfaceReview {
		return nil, &ValidationError{Field: "review", Reason: "no version is under review"}
	}
	if strings.TrimSpace(feedbackNotes) == "" {
		return nil, &ValidationError{Field: "feedback_notes", Reason: "rejection requires feedback notes"}
	}

	snapshot := s.queue.Items()
	s.advancePast(state.VersionID)

	v, err := s.api.Reject(ctx, state.DeliverableID, state.VersionID, feedbackNotes)
	if err != nil {
		s.reconcileFailure(ctx, err, state, snapshot)
		return nil, err
	}
	return v, nil
}

// advancePast applies the local transition: drop the resolved item and
// focus whatever is next, or go idle.
func (s *Session) advancePast(versionID string) {
	s.queue.Remove(versionID)
	if next, ok := s.queue.Next(); ok {
		s.navigator.AfterDecision(&next)
	} else {
		s.navigator.AfterDecision(nil)
	}
}

// reconcileFailure undoes or reconciles the optimistic change after a
// failed commit. Transport failures roll back to the pre-commit state;
// conflicts mean the server already moved on, so the queue is force
// refreshed instead.
func (s *Session) reconcileFailure(ctx context.Context, err error, state surface.State, snapshot []model.AttentionItem) {
	var transport *TransportError
	if errors.As(err, &transport) {
		s.queue.Restore(snapshot)
		s.navigator.StartReview(model.AttentionItem{
			DeliverableID: state.DeliverableID,
			VersionID:     state.VersionID,
		})
		return
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		// Best effort; a failed refresh leaves the optimistic removal,
		// which is already consistent with "somebody resolved it".
		_, _ = s.queue.Refresh(ctx)
	}
}
