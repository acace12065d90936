package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cardroom/holdemd/internal/game"
)

// User is an account with a chip wallet. Buy-ins move chips from the wallet
// to a seat stack and back.
type User struct {
	ID        string
	Nickname  string
	Wallet    int64
	CreatedAt time.Time
}

const userColumns = "id, nickname, wallet, created_at"

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Nickname, &u.Wallet, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.E(game.CodeInternal, "user not found")
	}
	if err != nil {
		return nil, game.Wrap(game.CodeInternal, "scan user", err)
	}
	return &u, nil
}

func getUser(ctx context.Context, q querier, d Dialect, id string, lock bool) (*User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	if lock {
		query += d.forUpdate()
	}
	return scanUser(q.QueryRowContext(ctx, d.rebind(query), id))
}

// User loads an account.
func (s *Store) User(ctx context.Context, id string) (*User, error) {
	return getUser(ctx, s.db, s.dialect, id, false)
}

// UserForUpdate loads an account holding its row lock.
func (t *Tx) UserForUpdate(ctx context.Context, id string) (*User, error) {
	return getUser(ctx, t.tx, t.dialect, id, true)
}

// UserByNickname finds the account registered under a nickname. A miss is
// reported as ok=false so callers can create the account in the same
// transaction.
func (t *Tx) UserByNickname(ctx context.Context, nickname string) (*User, bool, error) {
	row := t.tx.QueryRowContext(ctx,
		t.dialect.rebind("SELECT "+userColumns+" FROM users WHERE nickname = ?"+t.dialect.forUpdate()),
		nickname)
	var u User
	err := row.Scan(&u.ID, &u.Nickname, &u.Wallet, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, game.Wrap(game.CodeInternal, "scan user", err)
	}
	return &u, true, nil
}

// InsertUser creates an account.
func (t *Tx) InsertUser(ctx context.Context, u *User) error {
	_, err := t.tx.ExecContext(ctx,
		t.dialect.rebind("INSERT INTO users (id, nickname, wallet, created_at) VALUES (?, ?, ?, ?)"),
		u.ID, u.Nickname, u.Wallet, u.CreatedAt)
	if err != nil {
		return game.Wrap(game.CodeInternal, "insert user", err)
	}
	return nil
}

// AdjustWallet applies delta to a wallet, refusing to take it negative.
func (t *Tx) AdjustWallet(ctx context.Context, userID string, delta int64) error {
	u, err := t.UserForUpdate(ctx, userID)
	if err != nil {
		return err
	}
	if u.Wallet+delta < 0 {
		return game.Errf(game.CodeInsufficientChips, "wallet holds %d, need %d", u.Wallet, -delta)
	}
	_, err = t.tx.ExecContext(ctx,
		t.dialect.rebind("UPDATE users SET wallet = wallet + ? WHERE id = ?"),
		delta, userID)
	if err != nil {
		return game.Wrap(game.CodeInternal, "update wallet", err)
	}
	return nil
}
