package room

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// ActiveWindow is how recently a heartbeat must have landed for a player to
// count as present at the table.
const ActiveWindow = 15 * time.Second

type presenceKey struct {
	roomID string
	userID string
}

// Presence tracks the last heartbeat per (room, user). It is process-local
// and never persisted; losing it only puts turn timers on the short fuse
// until players heartbeat again. Stale entries are harmless, so there is no
// sweeper.
type Presence struct {
	clock quartz.Clock

	mu   sync.RWMutex
	seen map[presenceKey]time.Time
}

// NewPresence creates a tracker on the given clock. A nil clock uses the
// real one.
func NewPresence(clock quartz.Clock) *Presence {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Presence{clock: clock, seen: make(map[presenceKey]time.Time)}
}

// RecordHeartbeat marks the user as just seen in the room.
func (p *Presence) RecordHeartbeat(roomID, userID string) {
	now := p.clock.Now()
	p.mu.Lock()
	p.seen[presenceKey{roomID, userID}] = now
	p.mu.Unlock()
}

// IsActive reports whether the user heartbeat within the window.
func (p *Presence) IsActive(roomID, userID string) bool {
	p.mu.RLock()
	last, ok := p.seen[presenceKey{roomID, userID}]
	p.mu.RUnlock()
	return ok && p.clock.Since(last) < ActiveWindow
}

// Remove clears the entry when the user leaves the room.
func (p *Presence) Remove(roomID, userID string) {
	p.mu.Lock()
	delete(p.seen, presenceKey{roomID, userID})
	p.mu.Unlock()
}
