// Package surface tracks which screen the supervising human is on. It is
// an explicit, owned state container: views receive a handle and mutate it
// through this API instead of sharing ambient globals.
package surface

import (
	"sync"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
)

type Surface string

const (
	SurfaceList   Surface = "list"
	SurfaceDetail Surface = "detail"
	SurfaceReview Surface = "review"
	SurfaceIdle   Surface = "idle"
)

// State is a point-in-time snapshot of where the navigator is.
type State struct {
	Surface       Surface
	DeliverableID string
	VersionID     string
}

type Navigator struct {
	mu    sync.RWMutex
	state State
}

// New starts on the deliverable list.
func New() *Navigator {
	return &Navigator{state: State{Surface: SurfaceList}}
}

func (n *Navigator) Current() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// ShowList returns to the deliverable list, dropping any selection.
func (n *Navigator) ShowList() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = State{Surface: SurfaceList}
}

// ShowDetail focuses one deliverable.
func (n *Navigator) ShowDetail(deliverableID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = State{Surface: SurfaceDetail, DeliverableID: deliverableID}
}

// StartReview focuses a queue item for a decision.
func (n *Navigator) StartReview(item model.AttentionItem) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = State{
		Surface:       SurfaceReview,
		DeliverableID: item.DeliverableID,
		VersionID:     item.VersionID,
	}
}

// AfterDecision picks the next surface once the focused version has been
// resolved: the next queue item when one exists, otherwise idle. The
// caller renders idle as the default list view.
func (n *Navigator) AfterDecision(next *model.AttentionItem) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if next == nil {
		n.state = State{Surface: SurfaceIdle}
		return
	}
	n.state = State{
		Surface:       SurfaceReview,
		DeliverableID: next.DeliverableID,
		VersionID:     next.VersionID,
	}
}

// Reviewing reports whether a decision is in progress for versionID.
func (n *Navigator) Reviewing(versionID string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.Surface == SurfaceReview && n.state.VersionID == versionID
}
