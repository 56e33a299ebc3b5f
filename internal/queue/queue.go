// Package queue holds the client-side attention queue: an in-memory,
// FIFO-ordered projection of every version waiting on a human decision.
// It is a transient snapshot of server truth, rebuilt on each refresh.
package queue

import (
	"context"
	"sort"
	"sync"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
)

// Fetcher supplies the server's current view of versions awaiting review.
type Fetcher interface {
	FetchAttention(ctx context.Context) ([]model.AttentionItem, error)
}

// Queue is an owned container, passed by handle to whoever needs it.
// All mutation goes through its methods.
type Queue struct {
	mu      sync.RWMutex
	fetcher Fetcher
	items   []model.AttentionItem
}

func New(fetcher Fetcher) *Queue {
	return &Queue{fetcher: fetcher}
}

// Refresh rebuilds the queue from server truth, ordered oldest staged
// first. At most one item per deliverable survives; the server enforces
// this upstream but a stale snapshot is deduped here too.
func (q *Queue) Refresh(ctx context.Context) ([]model.AttentionItem, error) {
	items, err := q.fetcher.FetchAttention(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StagedAt.Before(items[j].StagedAt)
	})

	seen := make(map[string]bool, len(items))
	deduped := make([]model.AttentionItem, 0, len(items))
	for _, item := range items {
		if seen[item.DeliverableID] {
			continue
		}
		seen[item.DeliverableID] = true
		deduped = append(deduped, item)
	}

	q.mu.Lock()
	q.items = deduped
	q.mu.Unlock()

	return q.Items(), nil
}

// Remove drops the item carrying versionID. Removing an absent id is a
// no-op; the server confirmation can race a refresh that already dropped
// the item.
func (q *Queue) Remove(versionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.VersionID == versionID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// Next returns the current head, or ok=false when the queue is idle.
func (q *Queue) Next() (model.AttentionItem, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.items) == 0 {
		return model.AttentionItem{}, false
	}
	return q.items[0], true
}

// Skip rotates the head to the tail for this session. The version itself
// is untouched; a later refresh restores server ordering.
func (q *Queue) Skip() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) < 2 {
		return
	}
	head := q.items[0]
	q.items = append(q.items[1:], head)
}

// Items returns a copy of the current snapshot.
func (q *Queue) Items() []model.AttentionItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]model.AttentionItem, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Restore replaces the snapshot wholesale. It exists for rollback after a
// failed optimistic mutation: capture Items() before the change, Restore
// on failure.
func (q *Queue) Restore(items []model.AttentionItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = make([]model.AttentionItem, len(items))
	copy(q.items, items)
}
