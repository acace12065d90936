package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cardroom/holdemd/internal/game"
)

// Hand is one dealt round's persistent record.
type Hand struct {
	ID         string
	RoomID     string
	Number     int64
	DealerSeat int
	SmallBlind int64
	BigBlind   int64
	State      string
	Community  string // concatenated card codes, e.g. "AhKd7c"
	PotTotal   int64
	CreatedAt  time.Time
	SettledAt  sql.NullTime
}

// HandPlayer is one seat's record within a hand. HoleCards is private data;
// projections decide who sees it.
type HandPlayer struct {
	HandID    string
	UserID    string
	Seat      int
	HoleCards string
	Status    string
	BetTotal  int64
	Won       int64
	BestHand  string
}

// HandAction is one row of a hand's ordered log. UserID is null for dealer
// entries.
type HandAction struct {
	HandID    string
	Seq       int
	UserID    sql.NullString
	Type      string
	Amount    int64
	State     string
	CreatedAt time.Time
}

const handColumns = "id, room_id, hand_number, dealer_seat, small_blind, big_blind, state, community, pot_total, created_at, settled_at"

func scanHand(row *sql.Row) (*Hand, error) {
	var h Hand
	err := row.Scan(&h.ID, &h.RoomID, &h.Number, &h.DealerSeat, &h.SmallBlind,
		&h.BigBlind, &h.State, &h.Community, &h.PotTotal, &h.CreatedAt, &h.SettledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.E(game.CodeHandNotFound, "hand not found")
	}
	if err != nil {
		return nil, game.Wrap(game.CodeInternal, "scan hand", err)
	}
	return &h, nil
}

func getHand(ctx context.Context, q querier, d Dialect, id string, lock bool) (*Hand, error) {
	query := "SELECT " + handColumns + " FROM hands WHERE id = ?"
	if lock {
		query += d.forUpdate()
	}
	return scanHand(q.QueryRowContext(ctx, d.rebind(query), id))
}

// Hand loads a hand by id.
func (s *Store) Hand(ctx context.Context, id string) (*Hand, error) {
	return getHand(ctx, s.db, s.dialect, id, false)
}

// HandForUpdate loads a hand holding its row lock.
func (t *Tx) HandForUpdate(ctx context.Context, id string) (*Hand, error) {
	return getHand(ctx, t.tx, t.dialect, id, true)
}

func activeHand(ctx context.Context, q querier, d Dialect, roomID string, lock bool) (*Hand, error) {
	query := "SELECT " + handColumns + " FROM hands WHERE room_id = ? AND state <> ? ORDER BY hand_number DESC LIMIT 1"
	if lock {
		query += d.forUpdate()
	}
	h, err := scanHand(q.QueryRowContext(ctx, d.rebind(query), roomID, game.StateSettlement.String()))
	if err != nil && game.CodeOf(err) == game.CodeHandNotFound {
		return nil, game.E(game.CodeNoActiveHand, "no active hand in room")
	}
	return h, err
}

// ActiveHand returns the room's unsettled hand, or CodeNoActiveHand.
func (s *Store) ActiveHand(ctx context.Context, roomID string) (*Hand, error) {
	return activeHand(ctx, s.db, s.dialect, roomID, false)
}

// ActiveHandForUpdate returns the room's unsettled hand holding its row lock.
func (t *Tx) ActiveHandForUpdate(ctx context.Context, roomID string) (*Hand, error) {
	return activeHand(ctx, t.tx, t.dialect, roomID, true)
}

// LastHand returns the room's highest-numbered hand in any state, or
// CodeHandNotFound when the room has never dealt. Callers hold the room lock
// so numbering stays gap-free.
func (t *Tx) LastHand(ctx context.Context, roomID string) (*Hand, error) {
	return scanHand(t.tx.QueryRowContext(ctx, t.dialect.rebind(
		"SELECT "+handColumns+" FROM hands WHERE room_id = ? ORDER BY hand_number DESC LIMIT 1"), roomID))
}

// InsertHand creates a hand record.
func (t *Tx) InsertHand(ctx context.Context, h *Hand) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.rebind(
		"INSERT INTO hands ("+handColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		h.ID, h.RoomID, h.Number, h.DealerSeat, h.SmallBlind, h.BigBlind,
		h.State, h.Community, h.PotTotal, h.CreatedAt, h.SettledAt)
	if err != nil {
		return game.Wrap(game.CodeInternal, "insert hand", err)
	}
	return nil
}

// UpdateHand writes a hand's mutable columns.
func (t *Tx) UpdateHand(ctx context.Context, h *Hand) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.rebind(
		"UPDATE hands SET state = ?, community = ?, pot_total = ?, settled_at = ? WHERE id = ?"),
		h.State, h.Community, h.PotTotal, h.SettledAt, h.ID)
	if err != nil {
		return game.Wrap(game.CodeInternal, "update hand", err)
	}
	return nil
}

// HandPlayers lists a hand's seats in seat order.
func (s *Store) HandPlayers(ctx context.Context, handID string) ([]*HandPlayer, error) {
	return listHandPlayers(ctx, s.db, s.dialect, handID)
}

// HandPlayers lists a hand's seats within the transaction.
func (t *Tx) HandPlayers(ctx context.Context, handID string) ([]*HandPlayer, error) {
	return listHandPlayers(ctx, t.tx, t.dialect, handID)
}

func listHandPlayers(ctx context.Context, q querier, d Dialect, handID string) ([]*HandPlayer, error) {
	rows, err := q.QueryContext(ctx, d.rebind(
		"SELECT hand_id, user_id, seat, hole_cards, status, bet_total, won, best_hand FROM hand_players WHERE hand_id = ? ORDER BY seat"),
		handID)
	if err != nil {
		return nil, game.Wrap(game.CodeInternal, "list hand players", err)
	}
	defer rows.Close()

	var out []*HandPlayer
	for rows.Next() {
		var p HandPlayer
		if err := rows.Scan(&p.HandID, &p.UserID, &p.Seat, &p.HoleCards,
			&p.Status, &p.BetTotal, &p.Won, &p.BestHand); err != nil {
			return nil, game.Wrap(game.CodeInternal, "scan hand player", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// InsertHandPlayers writes every seat of a new hand.
func (t *Tx) InsertHandPlayers(ctx context.Context, players []*HandPlayer) error {
	query := t.dialect.rebind(
		"INSERT INTO hand_players (hand_id, user_id, seat, hole_cards, status, bet_total, won, best_hand) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	for _, p := range players {
		if _, err := t.tx.ExecContext(ctx, query,
			p.HandID, p.UserID, p.Seat, p.HoleCards, p.Status, p.BetTotal, p.Won, p.BestHand); err != nil {
			return game.Wrap(game.CodeInternal, "insert hand player", err)
		}
	}
	return nil
}

// UpdateHandPlayer writes a seat's mutable hand columns.
func (t *Tx) UpdateHandPlayer(ctx context.Context, p *HandPlayer) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.rebind(
		"UPDATE hand_players SET status = ?, bet_total = ?, won = ?, best_hand = ? WHERE hand_id = ? AND user_id = ?"),
		p.Status, p.BetTotal, p.Won, p.BestHand, p.HandID, p.UserID)
	if err != nil {
		return game.Wrap(game.CodeInternal, "update hand player", err)
	}
	return nil
}

// HandPlayerDetail joins a hand seat with the player's nickname.
type HandPlayerDetail struct {
	HandPlayer
	Nickname string
}

// HandPlayerDetails lists a hand's seats with nicknames, in seat order.
func (s *Store) HandPlayerDetails(ctx context.Context, handID string) ([]*HandPlayerDetail, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT hp.hand_id, hp.user_id, hp.seat, hp.hole_cards, hp.status, hp.bet_total, hp.won, hp.best_hand, u.nickname
		 FROM hand_players hp JOIN users u ON u.id = hp.user_id
		 WHERE hp.hand_id = ? ORDER BY hp.seat`), handID)
	if err != nil {
		return nil, game.Wrap(game.CodeInternal, "list hand player details", err)
	}
	defer rows.Close()

	var out []*HandPlayerDetail
	for rows.Next() {
		var p HandPlayerDetail
		if err := rows.Scan(&p.HandID, &p.UserID, &p.Seat, &p.HoleCards,
			&p.Status, &p.BetTotal, &p.Won, &p.BestHand, &p.Nickname); err != nil {
			return nil, game.Wrap(game.CodeInternal, "scan hand player detail", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// HandActions lists a hand's log in sequence order.
func (s *Store) HandActions(ctx context.Context, handID string) ([]*HandAction, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		"SELECT hand_id, seq, user_id, action_type, amount, state, created_at FROM hand_actions WHERE hand_id = ? ORDER BY seq"),
		handID)
	if err != nil {
		return nil, game.Wrap(game.CodeInternal, "list hand actions", err)
	}
	defer rows.Close()

	var out []*HandAction
	for rows.Next() {
		var a HandAction
		if err := rows.Scan(&a.HandID, &a.Seq, &a.UserID, &a.Type, &a.Amount, &a.State, &a.CreatedAt); err != nil {
			return nil, game.Wrap(game.CodeInternal, "scan hand action", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// InsertHandActions appends log rows. Sequence numbers come from the engine
// and stay gap-free per hand.
func (t *Tx) InsertHandActions(ctx context.Context, actions []*HandAction) error {
	query := t.dialect.rebind(
		"INSERT INTO hand_actions (hand_id, seq, user_id, action_type, amount, state, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	for _, a := range actions {
		if _, err := t.tx.ExecContext(ctx, query,
			a.HandID, a.Seq, a.UserID, a.Type, a.Amount, a.State, a.CreatedAt); err != nil {
			return game.Wrap(game.CodeInternal, "insert hand action", err)
		}
	}
	return nil
}
