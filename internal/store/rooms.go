package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cardroom/holdemd/internal/game"
)

// Room statuses.
const (
	RoomWaiting = "WAITING"
	RoomPlaying = "PLAYING"
	RoomClosed  = "CLOSED"
)

// Room player statuses.
const (
	SeatActive     = "ACTIVE"
	SeatSittingOut = "SITTING_OUT"
)

// Room is a table: blinds, buy-in range, seats and lifecycle status.
// InviteOnly rooms are reachable by invite code but never listed.
// AutoStartDelay is in seconds; zero means the scheduler default.
type Room struct {
	ID             string
	Name           string
	OwnerID        string
	InviteCode     string
	InviteOnly     bool
	MaxSeats       int
	SmallBlind     int64
	BigBlind       int64
	MinBuyIn       int64
	MaxBuyIn       int64
	AutoStartDelay int
	Status         string
	CreatedAt      time.Time
}

// RoomPlayer is one occupied seat.
type RoomPlayer struct {
	RoomID   string
	UserID   string
	Seat     int
	Stack    int64
	Status   string
	JoinedAt time.Time
}

const roomColumns = "id, name, owner_id, invite_code, invite_only, max_seats, small_blind, big_blind, min_buy_in, max_buy_in, auto_start_delay, status, created_at"

func scanRoom(row *sql.Row) (*Room, error) {
	var r Room
	err := row.Scan(&r.ID, &r.Name, &r.OwnerID, &r.InviteCode, &r.InviteOnly, &r.MaxSeats,
		&r.SmallBlind, &r.BigBlind, &r.MinBuyIn, &r.MaxBuyIn, &r.AutoStartDelay, &r.Status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.E(game.CodeRoomNotFound, "room not found")
	}
	if err != nil {
		return nil, game.Wrap(game.CodeInternal, "scan room", err)
	}
	return &r, nil
}

func getRoom(ctx context.Context, q querier, d Dialect, where string, lock bool, arg any) (*Room, error) {
	query := "SELECT " + roomColumns + " FROM rooms WHERE " + where + " = ?"
	if lock {
		query += d.forUpdate()
	}
	return scanRoom(q.QueryRowContext(ctx, d.rebind(query), arg))
}

// Room loads a room by id.
func (s *Store) Room(ctx context.Context, id string) (*Room, error) {
	return getRoom(ctx, s.db, s.dialect, "id", false, id)
}

// RoomByInvite loads a room by its invite code.
func (s *Store) RoomByInvite(ctx context.Context, code string) (*Room, error) {
	return getRoom(ctx, s.db, s.dialect, "invite_code", false, code)
}

// RoomByInvite is the transactional variant, used when generating codes and
// when resolving a join by invite under the room lock.
func (t *Tx) RoomByInvite(ctx context.Context, code string) (*Room, error) {
	return getRoom(ctx, t.tx, t.dialect, "invite_code", false, code)
}

// RoomForUpdate loads a room holding its row lock. Every mutating manager
// operation starts here so per-room work is serialized.
func (t *Tx) RoomForUpdate(ctx context.Context, id string) (*Room, error) {
	return getRoom(ctx, t.tx, t.dialect, "id", true, id)
}

// Rooms lists rooms that are not closed, newest first.
func (s *Store) Rooms(ctx context.Context) ([]*Room, error) {
	query := s.dialect.rebind("SELECT " + roomColumns + " FROM rooms WHERE status <> ? ORDER BY created_at DESC")
	rows, err := s.db.QueryContext(ctx, query, RoomClosed)
	if err != nil {
		return nil, game.Wrap(game.CodeInternal, "list rooms", err)
	}
	defer rows.Close()

	var out []*Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.Name, &r.OwnerID, &r.InviteCode, &r.InviteOnly, &r.MaxSeats,
			&r.SmallBlind, &r.BigBlind, &r.MinBuyIn, &r.MaxBuyIn, &r.AutoStartDelay, &r.Status, &r.CreatedAt); err != nil {
			return nil, game.Wrap(game.CodeInternal, "scan room", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// SeatCounts returns the number of occupied seats per room, for listings.
func (s *Store) SeatCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT room_id, COUNT(*) FROM room_players GROUP BY room_id")
	if err != nil {
		return nil, game.Wrap(game.CodeInternal, "count seats", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, game.Wrap(game.CodeInternal, "scan seat count", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// InsertRoom creates a room.
func (t *Tx) InsertRoom(ctx context.Context, r *Room) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.rebind(
		`INSERT INTO rooms (`+roomColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.Name, r.OwnerID, r.InviteCode, r.InviteOnly, r.MaxSeats,
		r.SmallBlind, r.BigBlind, r.MinBuyIn, r.MaxBuyIn, r.AutoStartDelay, r.Status, r.CreatedAt)
	if err != nil {
		return game.Wrap(game.CodeInternal, "insert room", err)
	}
	return nil
}

// SetRoomStatus moves a room through WAITING / PLAYING / CLOSED.
func (t *Tx) SetRoomStatus(ctx context.Context, roomID, status string) error {
	_, err := t.tx.ExecContext(ctx,
		t.dialect.rebind("UPDATE rooms SET status = ? WHERE id = ?"), status, roomID)
	if err != nil {
		return game.Wrap(game.CodeInternal, "update room status", err)
	}
	return nil
}

func listRoomPlayers(ctx context.Context, q querier, d Dialect, roomID string, lock bool) ([]*RoomPlayer, error) {
	query := "SELECT room_id, user_id, seat, stack, status, joined_at FROM room_players WHERE room_id = ? ORDER BY seat"
	if lock {
		query += d.forUpdate()
	}
	rows, err := q.QueryContext(ctx, d.rebind(query), roomID)
	if err != nil {
		return nil, game.Wrap(game.CodeInternal, "list room players", err)
	}
	defer rows.Close()

	var out []*RoomPlayer
	for rows.Next() {
		var p RoomPlayer
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.Seat, &p.Stack, &p.Status, &p.JoinedAt); err != nil {
			return nil, game.Wrap(game.CodeInternal, "scan room player", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// RoomPlayers lists a room's seats in seat order.
func (s *Store) RoomPlayers(ctx context.Context, roomID string) ([]*RoomPlayer, error) {
	return listRoomPlayers(ctx, s.db, s.dialect, roomID, false)
}

// RoomPlayersForUpdate lists a room's seats holding their row locks.
func (t *Tx) RoomPlayersForUpdate(ctx context.Context, roomID string) ([]*RoomPlayer, error) {
	return listRoomPlayers(ctx, t.tx, t.dialect, roomID, true)
}

// SeatDetail joins a seat with the sitting user's nickname, for views.
type SeatDetail struct {
	RoomPlayer
	Nickname string
}

// SeatDetails lists a room's seats with nicknames, in seat order.
func (s *Store) SeatDetails(ctx context.Context, roomID string) ([]*SeatDetail, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT rp.room_id, rp.user_id, rp.seat, rp.stack, rp.status, rp.joined_at, u.nickname
		 FROM room_players rp JOIN users u ON u.id = rp.user_id
		 WHERE rp.room_id = ? ORDER BY rp.seat`), roomID)
	if err != nil {
		return nil, game.Wrap(game.CodeInternal, "list seat details", err)
	}
	defer rows.Close()

	var out []*SeatDetail
	for rows.Next() {
		var p SeatDetail
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.Seat, &p.Stack, &p.Status, &p.JoinedAt, &p.Nickname); err != nil {
			return nil, game.Wrap(game.CodeInternal, "scan seat detail", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// InsertRoomPlayer seats a user.
func (t *Tx) InsertRoomPlayer(ctx context.Context, p *RoomPlayer) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.rebind(
		"INSERT INTO room_players (room_id, user_id, seat, stack, status, joined_at) VALUES (?, ?, ?, ?, ?, ?)"),
		p.RoomID, p.UserID, p.Seat, p.Stack, p.Status, p.JoinedAt)
	if err != nil {
		return game.Wrap(game.CodeInternal, "insert room player", err)
	}
	return nil
}

// UpdateSeat writes a seat's stack and status.
func (t *Tx) UpdateSeat(ctx context.Context, roomID, userID string, stack int64, status string) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.rebind(
		"UPDATE room_players SET stack = ?, status = ? WHERE room_id = ? AND user_id = ?"),
		stack, status, roomID, userID)
	if err != nil {
		return game.Wrap(game.CodeInternal, "update seat", err)
	}
	return nil
}

// DeleteRoomPlayer frees a seat.
func (t *Tx) DeleteRoomPlayer(ctx context.Context, roomID, userID string) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.rebind(
		"DELETE FROM room_players WHERE room_id = ? AND user_id = ?"), roomID, userID)
	if err != nil {
		return game.Wrap(game.CodeInternal, "delete room player", err)
	}
	return nil
}
