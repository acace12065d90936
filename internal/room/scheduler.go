package room

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/cardroom/holdemd/internal/game"
)

// Scheduler timer defaults.
const (
	DefaultTurnTimeout    = 10 * time.Second
	DefaultAFKTimeout     = 2 * time.Second
	DefaultAutoStartDelay = 5 * time.Second
)

// Executor is the slice of the hand manager the scheduler drives. The
// scheduler holds this capability instead of the manager itself, so the two
// can point at each other without a constructor cycle.
type Executor interface {
	FoldNow(ctx context.Context, handID, userID string) error
	StartHand(ctx context.Context, roomID string) error
}

// Timeouts groups the scheduler delays. Zero fields take the defaults.
type Timeouts struct {
	Turn      time.Duration // fuse for a present player's decision
	AFKTurn   time.Duration // fuse when the player has gone quiet
	AutoStart time.Duration // settlement-to-next-deal delay
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Turn <= 0 {
		t.Turn = DefaultTurnTimeout
	}
	if t.AFKTurn <= 0 {
		t.AFKTurn = DefaultAFKTimeout
	}
	if t.AutoStart <= 0 {
		t.AutoStart = DefaultAutoStartDelay
	}
	return t
}

// Scheduler owns the per-hand auto-fold timers and per-room auto-start
// timers. Each key holds at most one pending timer; scheduling again
// replaces it and cancels are idempotent. Fired tasks run through the
// executor and are validated like any other action, so a timer that lost the
// race to a human is rejected harmlessly.
type Scheduler struct {
	exec     Executor
	presence *Presence
	clock    quartz.Clock
	logger   *log.Logger
	timeouts Timeouts

	mu        sync.Mutex
	closed    bool
	turns     map[string]*quartz.Timer // hand id -> pending auto-fold
	starts    map[string]*quartz.Timer // room id -> pending auto-start
	roomDelay map[string]time.Duration // per-room auto-start override
}

// NewScheduler creates a scheduler driving exec. A nil clock uses the real
// one.
func NewScheduler(exec Executor, presence *Presence, clock quartz.Clock, logger *log.Logger, timeouts Timeouts) *Scheduler {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		exec:      exec,
		presence:  presence,
		clock:     clock,
		logger:    logger.WithPrefix("scheduler"),
		timeouts:  timeouts.withDefaults(),
		turns:     make(map[string]*quartz.Timer),
		starts:    make(map[string]*quartz.Timer),
		roomDelay: make(map[string]time.Duration),
	}
}

// SetAutoStartDelay overrides the auto-start delay for one room, which rooms
// carry as configuration. Zero or negative restores the default.
func (s *Scheduler) SetAutoStartDelay(roomID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d <= 0 {
		delete(s.roomDelay, roomID)
		return
	}
	s.roomDelay[roomID] = d
}

// TurnDelay returns the fuse the next turn timer for the player would get:
// the full one while their heartbeats are fresh, the short one once they go
// quiet. It also feeds the deadline clients see in YOUR_TURN pushes.
func (s *Scheduler) TurnDelay(roomID, userID string) time.Duration {
	if s.presence != nil && !s.presence.IsActive(roomID, userID) {
		return s.timeouts.AFKTurn
	}
	return s.timeouts.Turn
}

// ScheduleTurnTimer arms the auto-fold for the player now due to act,
// replacing any timer already pending for the hand.
func (s *Scheduler) ScheduleTurnTimer(handID, userID, roomID string) {
	delay := s.TurnDelay(roomID, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.turns[handID]; ok {
		t.Stop()
	}
	var timer *quartz.Timer
	timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.turns[handID] == timer {
			delete(s.turns, handID)
		}
		s.mu.Unlock()
		s.autoFold(handID, userID)
	})
	s.turns[handID] = timer
	s.logger.Debug("turn timer armed", "hand", handID, "player", userID, "delay", delay)
}

// CancelTurnTimer drops the pending auto-fold for the hand, if any.
func (s *Scheduler) CancelTurnTimer(handID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.turns[handID]; ok {
		t.Stop()
		delete(s.turns, handID)
	}
}

// ScheduleAutoStart arms the next deal for the room, replacing any pending
// one.
func (s *Scheduler) ScheduleAutoStart(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.starts[roomID]; ok {
		t.Stop()
	}
	delay := s.timeouts.AutoStart
	if d, ok := s.roomDelay[roomID]; ok {
		delay = d
	}
	var timer *quartz.Timer
	timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.starts[roomID] == timer {
			delete(s.starts, roomID)
		}
		s.mu.Unlock()
		s.autoStart(roomID)
	})
	s.starts[roomID] = timer
	s.logger.Debug("auto-start armed", "room", roomID, "delay", delay)
}

// CancelAutoStart drops the pending auto-start for the room, if any.
func (s *Scheduler) CancelAutoStart(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.starts[roomID]; ok {
		t.Stop()
		delete(s.starts, roomID)
	}
}

// PendingTurn reports whether an auto-fold is armed for the hand.
func (s *Scheduler) PendingTurn(handID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.turns[handID]
	return ok
}

// PendingAutoStart reports whether an auto-start is armed for the room.
func (s *Scheduler) PendingAutoStart(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.starts[roomID]
	return ok
}

// Shutdown cancels every pending timer. Fires already in flight run to
// completion.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.turns {
		t.Stop()
		delete(s.turns, id)
	}
	for id, t := range s.starts {
		t.Stop()
		delete(s.starts, id)
	}
}

func (s *Scheduler) autoFold(handID, userID string) {
	err := s.exec.FoldNow(context.Background(), handID, userID)
	switch {
	case err == nil:
		s.logger.Info("player timed out, auto-folded", "hand", handID, "player", userID)
	case game.CodeOf(err) == game.CodeInternal:
		s.logger.Error("auto-fold failed", "hand", handID, "player", userID, "error", err)
	default:
		// The player acted first or the hand moved on without them.
		s.logger.Info("auto-fold rejected", "hand", handID, "player", userID, "code", game.CodeOf(err))
	}
}

func (s *Scheduler) autoStart(roomID string) {
	if err := s.exec.StartHand(context.Background(), roomID); err != nil {
		s.logger.Info("auto-start skipped", "room", roomID, "code", game.CodeOf(err), "error", err)
		return
	}
	s.logger.Info("auto-started next hand", "room", roomID)
}
