// Package room runs the tables: the hand manager drives the game engine
// against the store, the scheduler enforces decision clocks, and presence
// decides how long those clocks run.
package room

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/cardroom/holdemd/internal/card"
	"github.com/cardroom/holdemd/internal/events"
	"github.com/cardroom/holdemd/internal/game"
	"github.com/cardroom/holdemd/internal/store"
)

// Manager runs hands. It owns the live engine state for every hand in
// flight, persists each transition in one transaction and publishes events
// only after that transaction commits.
//
// The store row locks serialize writers across processes; the per-hand mutex
// serializes them in process, so of two racing actions the loser revalidates
// against the winner's committed state.
type Manager struct {
	store  *store.Store
	pub    *events.Publisher
	clock  quartz.Clock
	logger *log.Logger
	sched  *Scheduler
	deckFn func() *card.Deck

	mu   sync.Mutex
	live map[string]*liveHand
}

// liveHand pairs the in-memory engine state with the in-process lock for the
// hand. The installed *game.Hand is never mutated: Apply runs on a clone
// that replaces it once the transaction commits, so a rollback costs
// nothing and readers may use the installed pointer freely.
type liveHand struct {
	mu sync.Mutex
	h  *game.Hand
}

// NewManager creates a manager. A nil clock uses the real one; a nil
// publisher gets a default-sized one.
func NewManager(st *store.Store, pub *events.Publisher, clock quartz.Clock, logger *log.Logger) *Manager {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = log.Default()
	}
	if pub == nil {
		pub = events.NewPublisher(logger, 0)
	}
	return &Manager{
		store:  st,
		pub:    pub,
		clock:  clock,
		logger: logger.WithPrefix("hands"),
		live:   make(map[string]*liveHand),
	}
}

// SetScheduler wires the timer service once both sides exist; see Executor.
// With no scheduler the manager still runs hands, it just never starts or
// folds anyone on its own.
func (m *Manager) SetScheduler(s *Scheduler) { m.sched = s }

// SetDeckSource overrides where new hands draw their decks. The default is
// a fresh crypto-shuffled deck per hand; tests and replays install stacked
// decks here.
func (m *Manager) SetDeckSource(fn func() *card.Deck) { m.deckFn = fn }

// Publisher exposes the event publisher for subscribing layers.
func (m *Manager) Publisher() *events.Publisher { return m.pub }

// StartNewHand deals the next hand in the room. requesterID guards
// membership when a player asks for the deal; the scheduler passes the empty
// string. The returned view is filtered for the requester.
func (m *Manager) StartNewHand(ctx context.Context, roomID, requesterID string) (*HandView, error) {
	var live *game.Hand
	var autoStart time.Duration
	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		room, err := tx.RoomForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if room.Status == store.RoomClosed {
			return game.E(game.CodeRoomNotJoinable, "room is closed")
		}
		autoStart = time.Duration(room.AutoStartDelay) * time.Second
		seats, err := tx.RoomPlayersForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if requesterID != "" && !seated(seats, requesterID) {
			return game.E(game.CodeNotInRoom, "you are not in this room")
		}
		if _, err := tx.ActiveHandForUpdate(ctx, roomID); err == nil {
			return game.E(game.CodeActiveHandInProgress, "a hand is already in progress")
		} else if game.CodeOf(err) != game.CodeNoActiveHand {
			return err
		}

		// Only seats that can cover the big blind are dealt in; the rest
		// keep their chairs and wait for a top-up.
		var dealt []game.Seat
		for _, rp := range seats {
			if rp.Status == store.SeatActive && rp.Stack >= room.BigBlind {
				dealt = append(dealt, game.Seat{UserID: rp.UserID, Seat: rp.Seat, Stack: rp.Stack})
			}
		}
		if len(dealt) < 2 {
			return game.Errf(game.CodeInsufficientPlayers, "need two players holding at least %d chips", room.BigBlind)
		}

		number := int64(1)
		prevDealer := -1
		switch last, err := tx.LastHand(ctx, roomID); {
		case err == nil:
			number = last.Number + 1
			prevDealer = last.DealerSeat
		case game.CodeOf(err) != game.CodeHandNotFound:
			return err
		}

		var deck *card.Deck
		if m.deckFn != nil {
			deck = m.deckFn()
		}
		live, err = game.New(game.Config{
			ID:         uuid.NewString(),
			RoomID:     roomID,
			Number:     number,
			MaxSeats:   room.MaxSeats,
			DealerSeat: nextDealer(dealt, prevDealer, room.MaxSeats),
			SmallBlind: room.SmallBlind,
			BigBlind:   room.BigBlind,
			Seats:      dealt,
			Deck:       deck,
		})
		if err != nil {
			return err
		}

		now := m.clock.Now()
		if err := tx.InsertHand(ctx, handRow(live, now)); err != nil {
			return err
		}
		if err := tx.InsertHandPlayers(ctx, handPlayerRows(live)); err != nil {
			return err
		}
		if err := tx.InsertHandActions(ctx, actionRows(live, 0, now)); err != nil {
			return err
		}
		if err := mirrorSeats(ctx, tx, live); err != nil {
			return err
		}
		status := store.RoomPlaying
		if live.State.Terminal() {
			status = store.RoomWaiting
		}
		return tx.SetRoomStatus(ctx, roomID, status)
	})
	if err != nil {
		return nil, err
	}

	if m.sched != nil {
		m.sched.SetAutoStartDelay(roomID, autoStart)
	}
	if !live.State.Terminal() {
		m.install(live)
	}
	m.logger.Info("hand started",
		"room", roomID, "hand", live.ID, "number", live.Number,
		"dealer", live.DealerSeat, "players", len(live.Players))
	return m.afterCommit(ctx, live, 0, true, requesterID)
}

// ProcessAction plays one action for the player and pushes the hand as far
// as it can go without further input, auto-running the board when nobody can
// bet. It returns the requester-filtered view of the result.
func (m *Manager) ProcessAction(ctx context.Context, handID, userID string, action game.ActionType, amount int64) (*HandView, error) {
	lh, err := m.lookup(ctx, handID)
	if err != nil {
		return nil, err
	}
	lh.mu.Lock()
	defer lh.mu.Unlock()

	prevLen := len(lh.h.Log)
	next := lh.h.Clone()
	if err := next.Apply(userID, action, amount); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.HandForUpdate(ctx, handID); err != nil {
			return err
		}
		if err := tx.UpdateHand(ctx, handRow(next, now)); err != nil {
			return err
		}
		for _, hp := range handPlayerRows(next) {
			if err := tx.UpdateHandPlayer(ctx, hp); err != nil {
				return err
			}
		}
		if err := tx.InsertHandActions(ctx, actionRows(next, prevLen, now)); err != nil {
			return err
		}
		if err := mirrorSeats(ctx, tx, next); err != nil {
			return err
		}
		if next.State.Terminal() {
			return tx.SetRoomStatus(ctx, next.RoomID, store.RoomWaiting)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lh.h = next
	if next.State.Terminal() {
		m.retire(handID)
	}
	m.logger.Info("action applied",
		"hand", handID, "player", userID, "action", action,
		"amount", amount, "state", next.State)
	return m.afterCommit(ctx, next, prevLen, false, userID)
}

// FoldNow is the scheduler's auto-fold entry.
func (m *Manager) FoldNow(ctx context.Context, handID, userID string) error {
	_, err := m.ProcessAction(ctx, handID, userID, game.ActionFold, 0)
	return err
}

// StartHand is the scheduler's auto-start entry.
func (m *Manager) StartHand(ctx context.Context, roomID string) error {
	_, err := m.StartNewHand(ctx, roomID, "")
	return err
}

// GetCurrentPlayerID returns the user due to act, or the empty string when
// nobody is (the hand is terminal or auto-running).
func (m *Manager) GetCurrentPlayerID(ctx context.Context, handID string) (string, error) {
	if h := m.liveState(handID); h != nil {
		if cp := h.CurrentPlayer(); cp != nil {
			return cp.UserID, nil
		}
		return "", nil
	}
	if _, err := m.store.Hand(ctx, handID); err != nil {
		return "", err
	}
	return "", nil
}

// GetHand returns the hand projected for the requester.
func (m *Manager) GetHand(ctx context.Context, handID, requesterID string) (*HandView, error) {
	if h := m.liveState(handID); h != nil {
		seats, err := m.store.SeatDetails(ctx, h.RoomID)
		if err != nil {
			return nil, err
		}
		return liveHandView(h, seats, requesterID), nil
	}

	row, err := m.store.Hand(ctx, handID)
	if err != nil {
		return nil, err
	}
	players, err := m.store.HandPlayerDetails(ctx, handID)
	if err != nil {
		return nil, err
	}
	seats, err := m.store.RoomPlayers(ctx, row.RoomID)
	if err != nil {
		return nil, err
	}
	return storedHandView(row, players, seats, requesterID), nil
}

// GetActiveHand returns the room's running hand projected for the requester.
func (m *Manager) GetActiveHand(ctx context.Context, roomID, requesterID string) (*HandView, error) {
	row, err := m.store.ActiveHand(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return m.GetHand(ctx, row.ID, requesterID)
}

// GetActions returns the hand's persisted log in sequence order.
func (m *Manager) GetActions(ctx context.Context, handID string) ([]ActionView, error) {
	rows, err := m.store.HandActions(ctx, handID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		// Every hand logs its blinds, so an empty log means no hand.
		if _, err := m.store.Hand(ctx, handID); err != nil {
			return nil, err
		}
	}
	out := make([]ActionView, len(rows))
	for i, a := range rows {
		out[i] = actionView(a)
	}
	return out, nil
}

// Shutdown retires all live hands. In-flight operations finish against the
// store; unfinished hands stay in their last committed state.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.live {
		delete(m.live, id)
	}
}

// lookup resolves the live state for a mutating operation, mapping the
// miss to the reason: no such hand, hand already over, or state lost to a
// restart.
func (m *Manager) lookup(ctx context.Context, handID string) (*liveHand, error) {
	m.mu.Lock()
	lh := m.live[handID]
	m.mu.Unlock()
	if lh != nil {
		return lh, nil
	}
	row, err := m.store.Hand(ctx, handID)
	if err != nil {
		return nil, err
	}
	if row.State == game.StateSettlement.String() {
		return nil, game.E(game.CodeIllegalAction, "hand is already settled")
	}
	return nil, game.Errf(game.CodeInternal, "no live state for hand %s", handID)
}

func (m *Manager) install(h *game.Hand) {
	m.mu.Lock()
	m.live[h.ID] = &liveHand{h: h}
	m.mu.Unlock()
}

func (m *Manager) retire(handID string) {
	m.mu.Lock()
	delete(m.live, handID)
	m.mu.Unlock()
}

// liveState returns the installed engine state, which is safe to read
// without further locking because installed hands are never mutated in
// place.
func (m *Manager) liveState(handID string) *game.Hand {
	m.mu.Lock()
	lh := m.live[handID]
	m.mu.Unlock()
	if lh == nil {
		return nil
	}
	lh.mu.Lock()
	defer lh.mu.Unlock()
	return lh.h
}

// afterCommit derives events from the log entries the operation appended,
// publishes them, and re-arms or retires the timers. It returns the
// requester's view of the hand.
func (m *Manager) afterCommit(ctx context.Context, h *game.Hand, prevLen int, started bool, requesterID string) (*HandView, error) {
	seats, err := m.store.SeatDetails(ctx, h.RoomID)
	if err != nil {
		// The transaction is committed; the projection must not fail it.
		m.logger.Warn("seat details after commit", "hand", h.ID, "error", err)
		seats = nil
	}
	public := liveHandView(h, seats, "")

	if started {
		if m.sched != nil {
			m.sched.CancelAutoStart(h.RoomID)
		}
		m.publishRoom(h, events.TypeHandStarted, public)
		for _, p := range h.Players {
			m.publishUser(p.UserID, h, events.TypeHoleCards, events.HoleCardsPayload{
				HandID: h.ID,
				Cards:  card.Codes(p.HoleCards),
			})
		}
	}

	var acted, showed, settled bool
	var deals int
	for _, e := range h.Log[prevLen:] {
		switch e.Type {
		case game.ActionCheck, game.ActionCall, game.ActionRaise, game.ActionFold, game.ActionAllIn:
			acted = true
		case game.ActionDealFlop, game.ActionDealTurn, game.ActionDealRiver:
			deals++
		case game.ActionShowdown:
			showed = true
		case game.ActionSettle:
			settled = true
		}
	}
	if acted {
		m.publishRoom(h, events.TypePlayerAction, public)
	}
	if deals > 0 && !settled {
		m.publishRoom(h, events.TypeStateChanged, public)
	}
	for i := 0; i < deals; i++ {
		m.publishRoom(h, events.TypeCommunityCards, public)
	}
	if showed {
		m.publishRoom(h, events.TypeShowdown, public)
	}
	if settled {
		m.publishRoom(h, events.TypeHandSettled, public)
	}

	if cp := h.CurrentPlayer(); cp != nil {
		m.notifyTurn(h, cp)
	} else if m.sched != nil {
		m.sched.CancelTurnTimer(h.ID)
	}
	if settled {
		m.logger.Info("hand settled", "hand", h.ID, "number", h.Number, "pot", h.PotTotal())
		if m.sched != nil {
			m.sched.ScheduleAutoStart(h.RoomID)
		}
	}

	if requesterID == "" {
		return public, nil
	}
	return liveHandView(h, seats, requesterID), nil
}

// notifyTurn pushes the your-turn ping with the decision deadline and arms
// the auto-fold behind it.
func (m *Manager) notifyTurn(h *game.Hand, cp *game.Player) {
	delay := DefaultTurnTimeout
	if m.sched != nil {
		delay = m.sched.TurnDelay(h.RoomID, cp.UserID)
	}
	m.publishUser(cp.UserID, h, events.TypeYourTurn, events.YourTurnPayload{
		HandID:   h.ID,
		Deadline: m.clock.Now().Add(delay).UnixMilli(),
		Actions:  h.ValidActions(),
	})
	if m.sched != nil {
		m.sched.ScheduleTurnTimer(h.ID, cp.UserID, h.RoomID)
	}
}

func (m *Manager) publishRoom(h *game.Hand, typ events.Type, payload any) {
	m.pub.PublishRoom(h.RoomID, events.Event{
		Type:      typ,
		HandID:    h.ID,
		Timestamp: m.clock.Now(),
		Payload:   payload,
	})
}

func (m *Manager) publishUser(userID string, h *game.Hand, typ events.Type, payload any) {
	m.pub.PublishUser(userID, events.Event{
		Type:      typ,
		RoomID:    h.RoomID,
		HandID:    h.ID,
		Timestamp: m.clock.Now(),
		Payload:   payload,
	})
}

// mirrorSeats copies live stacks back onto the room seats so views and the
// next deal read current chips. At settlement a seat that went broke sits
// out until it tops back up.
func mirrorSeats(ctx context.Context, tx *store.Tx, h *game.Hand) error {
	for _, p := range h.Players {
		status := store.SeatActive
		if h.State.Terminal() && p.Stack == 0 {
			status = store.SeatSittingOut
		}
		if err := tx.UpdateSeat(ctx, h.RoomID, p.UserID, p.Stack, status); err != nil {
			return err
		}
	}
	return nil
}

// nextDealer picks the first dealt-in seat clockwise after the previous
// dealer, or the lowest dealt-in seat when the room has no prior hand.
// Seats that cannot play this hand are skipped by construction.
func nextDealer(seats []game.Seat, prevDealer, maxSeats int) int {
	occupied := make(map[int]bool, len(seats))
	lowest := -1
	for _, s := range seats {
		occupied[s.Seat] = true
		if lowest == -1 || s.Seat < lowest {
			lowest = s.Seat
		}
	}
	if prevDealer >= 0 {
		for off := 1; off <= maxSeats; off++ {
			if seat := (prevDealer + off) % maxSeats; occupied[seat] {
				return seat
			}
		}
	}
	return lowest
}

func seated(seats []*store.RoomPlayer, userID string) bool {
	for _, s := range seats {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

func handRow(h *game.Hand, now time.Time) *store.Hand {
	row := &store.Hand{
		ID:         h.ID,
		RoomID:     h.RoomID,
		Number:     h.Number,
		DealerSeat: h.DealerSeat,
		SmallBlind: h.SmallBlind,
		BigBlind:   h.BigBlind,
		State:      h.State.String(),
		Community:  strings.Join(card.Codes(h.Community), ""),
		PotTotal:   h.PotTotal(),
		CreatedAt:  now,
	}
	if h.State.Terminal() {
		row.SettledAt = sql.NullTime{Time: now, Valid: true}
	}
	return row
}

func handPlayerRows(h *game.Hand) []*store.HandPlayer {
	rows := make([]*store.HandPlayer, 0, len(h.Players))
	for _, p := range h.Players {
		rows = append(rows, &store.HandPlayer{
			HandID:    h.ID,
			UserID:    p.UserID,
			Seat:      p.Seat,
			HoleCards: strings.Join(card.Codes(p.HoleCards), ""),
			Status:    p.Status.String(),
			BetTotal:  p.BetTotal,
			Won:       p.Won,
			BestHand:  p.BestHand,
		})
	}
	return rows
}

// actionRows converts the log entries appended since prevLen into rows. A
// batch shares one timestamp; order within it is carried by seq.
func actionRows(h *game.Hand, prevLen int, now time.Time) []*store.HandAction {
	entries := h.Log[prevLen:]
	rows := make([]*store.HandAction, 0, len(entries))
	for _, e := range entries {
		row := &store.HandAction{
			HandID:    h.ID,
			Seq:       e.Seq,
			Type:      e.Type.String(),
			Amount:    e.Amount,
			State:     e.State.String(),
			CreatedAt: now,
		}
		if e.UserID != "" {
			row.UserID = sql.NullString{String: e.UserID, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}
