// Package server is the websocket gateway: it upgrades connections, decodes
// the message protocol, runs the room lifecycle (accounts, seats, buy-ins)
// and bridges the event stream onto client connections. Hand play itself is
// delegated to the room manager.
package server

import (
	"context"
	rand "math/rand/v2"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/cardroom/holdemd/internal/events"
	"github.com/cardroom/holdemd/internal/game"
	"github.com/cardroom/holdemd/internal/randutil"
	"github.com/cardroom/holdemd/internal/room"
	"github.com/cardroom/holdemd/internal/store"
)

// DefaultStartingWallet is granted once when a nickname first authenticates.
// Top-ups are out of scope, so this is the bankroll for the account's life.
const DefaultStartingWallet int64 = 10_000

// Invite codes avoid characters that read ambiguously (0/O, 1/I/L, U/V).
const (
	inviteAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"
	inviteLength   = 6
	inviteAttempts = 10
)

// RoomConfig is the shape of a room a player asks to create.
type RoomConfig struct {
	Name           string
	MaxSeats       int
	SmallBlind     int64
	BigBlind       int64
	MinBuyIn       int64
	MaxBuyIn       int64
	InviteOnly     bool
	AutoStartDelay int // seconds; zero takes the scheduler default
}

// JoinRequest locates a room by id or invite code and names the buy-in.
// A nil Seat takes the first free one.
type JoinRequest struct {
	RoomID     string
	InviteCode string
	Seat       *int
	BuyIn      int64
}

// RoomService owns everything around the hand engine: nickname sessions,
// room creation, seats and the wallet-to-stack moves, plus the social
// channels. Every mutation is one transaction; events publish after commit.
type RoomService struct {
	store    *store.Store
	pub      *events.Publisher
	presence *room.Presence
	clock    quartz.Clock
	logger   *log.Logger

	startingWallet int64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewRoomService wires the service. A nil clock uses the real one.
func NewRoomService(st *store.Store, pub *events.Publisher, presence *room.Presence, clock quartz.Clock, logger *log.Logger) *RoomService {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RoomService{
		store:          st,
		pub:            pub,
		presence:       presence,
		clock:          clock,
		logger:         logger.WithPrefix("rooms"),
		startingWallet: DefaultStartingWallet,
		rng:            randutil.NewCrypto(),
	}
}

// Authenticate resolves a nickname to its account, creating one with the
// starting wallet on first sight.
func (s *RoomService) Authenticate(ctx context.Context, nickname string) (*store.User, error) {
	var u *store.User
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		found, ok, err := tx.UserByNickname(ctx, nickname)
		if err != nil {
			return err
		}
		if ok {
			u = found
			return nil
		}
		u = &store.User{
			ID:        uuid.NewString(),
			Nickname:  nickname,
			Wallet:    s.startingWallet,
			CreatedAt: s.clock.Now(),
		}
		return tx.InsertUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("authenticated", "user", u.ID, "nickname", u.Nickname)
	return u, nil
}

// CreateRoom validates the table shape and creates it WAITING with a fresh
// invite code. The owner is not seated automatically.
func (s *RoomService) CreateRoom(ctx context.Context, ownerID string, cfg RoomConfig) (*store.Room, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "no-limit hold'em"
	}
	if cfg.MaxSeats < 2 || cfg.MaxSeats > 9 {
		return nil, game.Errf(game.CodeInvalidAmount, "max seats must be between 2 and 9, got %d", cfg.MaxSeats)
	}
	if cfg.SmallBlind <= 0 || cfg.BigBlind != 2*cfg.SmallBlind {
		return nil, game.Errf(game.CodeInvalidBlindRatio, "big blind must be twice the small blind, got %d/%d", cfg.SmallBlind, cfg.BigBlind)
	}
	if cfg.MinBuyIn < cfg.BigBlind || cfg.MaxBuyIn < cfg.MinBuyIn {
		return nil, game.Errf(game.CodeInvalidBuyInRange, "buy-in range [%d, %d] must start at the big blind and not be empty", cfg.MinBuyIn, cfg.MaxBuyIn)
	}
	if cfg.AutoStartDelay < 0 {
		return nil, game.Errf(game.CodeInvalidAmount, "auto-start delay must not be negative, got %d", cfg.AutoStartDelay)
	}

	r := &store.Room{
		ID:             uuid.NewString(),
		Name:           name,
		OwnerID:        ownerID,
		InviteOnly:     cfg.InviteOnly,
		MaxSeats:       cfg.MaxSeats,
		SmallBlind:     cfg.SmallBlind,
		BigBlind:       cfg.BigBlind,
		MinBuyIn:       cfg.MinBuyIn,
		MaxBuyIn:       cfg.MaxBuyIn,
		AutoStartDelay: cfg.AutoStartDelay,
		Status:         store.RoomWaiting,
		CreatedAt:      s.clock.Now(),
	}
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		code, err := s.freshInviteCode(ctx, tx)
		if err != nil {
			return err
		}
		r.InviteCode = code
		return tx.InsertRoom(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("room created",
		"room", r.ID, "name", r.Name, "owner", ownerID,
		"blinds", r.BigBlind, "inviteOnly", r.InviteOnly)
	return r, nil
}

// freshInviteCode draws codes until one is unused. The space is ~7e8 so a
// retry is already unlikely; running out means the RNG is broken.
func (s *RoomService) freshInviteCode(ctx context.Context, tx *store.Tx) (string, error) {
	for range inviteAttempts {
		code := s.newInviteCode()
		_, err := tx.RoomByInvite(ctx, code)
		if game.CodeOf(err) == game.CodeRoomNotFound {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", game.E(game.CodeInternal, "could not generate an unused invite code")
}

func (s *RoomService) newInviteCode() string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	b := make([]byte, inviteLength)
	for i := range b {
		b[i] = inviteAlphabet[s.rng.IntN(len(inviteAlphabet))]
	}
	return string(b)
}

// JoinRoom seats the user, moving the buy-in from their wallet to the seat
// stack in the same transaction. Joining is refused while the room's live
// hand still counts the user as a participant, because settlement will write
// that hand's stacks back onto the seats.
func (s *RoomService) JoinRoom(ctx context.Context, userID string, req JoinRequest) (*store.RoomPlayer, error) {
	if req.BuyIn <= 0 {
		return nil, game.Errf(game.CodeInvalidBuyIn, "buy-in must be positive, got %d", req.BuyIn)
	}

	var seatRow *store.RoomPlayer
	var nickname string
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		id := req.RoomID
		if id == "" {
			code := strings.ToUpper(strings.TrimSpace(req.InviteCode))
			r, err := tx.RoomByInvite(ctx, code)
			if err != nil {
				return err
			}
			id = r.ID
		}
		r, err := tx.RoomForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r.Status == store.RoomClosed {
			return game.E(game.CodeRoomNotJoinable, "room is closed")
		}
		if req.BuyIn < r.MinBuyIn || req.BuyIn > r.MaxBuyIn {
			return game.Errf(game.CodeInvalidBuyInRange, "buy-in %d outside [%d, %d]", req.BuyIn, r.MinBuyIn, r.MaxBuyIn)
		}

		seats, err := tx.RoomPlayersForUpdate(ctx, id)
		if err != nil {
			return err
		}
		taken := make(map[int]bool, len(seats))
		for _, p := range seats {
			if p.UserID == userID {
				return game.E(game.CodeAlreadyInRoom, "already seated in this room")
			}
			taken[p.Seat] = true
		}
		if len(seats) >= r.MaxSeats {
			return game.Errf(game.CodeRoomFull, "room seats %d players", r.MaxSeats)
		}
		if err := s.guardLiveHand(ctx, tx, id, userID, true); err != nil {
			return err
		}

		seat := -1
		if req.Seat != nil {
			if *req.Seat < 0 || *req.Seat >= r.MaxSeats {
				return game.Errf(game.CodeInvalidAmount, "seat %d out of range [0, %d)", *req.Seat, r.MaxSeats)
			}
			if taken[*req.Seat] {
				return game.Errf(game.CodeSeatTaken, "seat %d is taken", *req.Seat)
			}
			seat = *req.Seat
		} else {
			for i := 0; i < r.MaxSeats; i++ {
				if !taken[i] {
					seat = i
					break
				}
			}
			if seat == -1 {
				return game.E(game.CodeNoSeats, "no free seat")
			}
		}

		u, err := tx.UserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		nickname = u.Nickname
		if err := tx.AdjustWallet(ctx, userID, -req.BuyIn); err != nil {
			return err
		}
		seatRow = &store.RoomPlayer{
			RoomID:   id,
			UserID:   userID,
			Seat:     seat,
			Stack:    req.BuyIn,
			Status:   store.SeatActive,
			JoinedAt: s.clock.Now(),
		}
		return tx.InsertRoomPlayer(ctx, seatRow)
	})
	if err != nil {
		return nil, err
	}

	if s.presence != nil {
		s.presence.RecordHeartbeat(seatRow.RoomID, userID)
	}
	s.pub.PublishRoom(seatRow.RoomID, events.Event{
		Type:      events.TypePlayerJoined,
		Timestamp: s.clock.Now(),
		Payload: events.PlayerJoinedPayload{
			UserID:   userID,
			Nickname: nickname,
			Seat:     seatRow.Seat,
			Stack:    seatRow.Stack,
		},
	})
	s.logger.Info("player joined",
		"room", seatRow.RoomID, "user", userID, "seat", seatRow.Seat, "buyIn", req.BuyIn)
	return seatRow, nil
}

// LeaveRoom moves the seat stack back to the wallet and frees the seat. A
// player the live hand still needs (not folded) cannot leave; a room left
// empty closes. It returns the wallet balance after the move.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, userID string) (int64, error) {
	var wallet int64
	var seat int
	var nickname string
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.RoomForUpdate(ctx, roomID); err != nil {
			return err
		}
		seats, err := tx.RoomPlayersForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		var mine *store.RoomPlayer
		for _, p := range seats {
			if p.UserID == userID {
				mine = p
				break
			}
		}
		if mine == nil {
			return game.E(game.CodeNotInRoom, "not seated in this room")
		}
		if err := s.guardLiveHand(ctx, tx, roomID, userID, false); err != nil {
			return err
		}

		u, err := tx.UserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		nickname = u.Nickname
		seat = mine.Seat
		wallet = u.Wallet + mine.Stack
		if err := tx.AdjustWallet(ctx, userID, mine.Stack); err != nil {
			return err
		}
		if err := tx.DeleteRoomPlayer(ctx, roomID, userID); err != nil {
			return err
		}
		if len(seats) == 1 {
			return tx.SetRoomStatus(ctx, roomID, store.RoomClosed)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if s.presence != nil {
		s.presence.Remove(roomID, userID)
	}
	s.pub.PublishRoom(roomID, events.Event{
		Type:      events.TypePlayerLeft,
		Timestamp: s.clock.Now(),
		Payload: events.PlayerLeftPayload{
			UserID:   userID,
			Nickname: nickname,
			Seat:     seat,
		},
	})
	s.logger.Info("player left", "room", roomID, "user", userID, "seat", seat)
	return wallet, nil
}

// guardLiveHand rejects the seat change while the room's live hand involves
// the user. anyStatus widens the check to folded participants too: their
// row will still be written back at settlement, so a fresh seat under the
// same user must wait.
func (s *RoomService) guardLiveHand(ctx context.Context, tx *store.Tx, roomID, userID string, anyStatus bool) error {
	hand, err := tx.ActiveHandForUpdate(ctx, roomID)
	if game.CodeOf(err) == game.CodeNoActiveHand {
		return nil
	}
	if err != nil {
		return err
	}
	players, err := tx.HandPlayers(ctx, hand.ID)
	if err != nil {
		return err
	}
	for _, p := range players {
		if p.UserID != userID {
			continue
		}
		if anyStatus || p.Status != game.StatusFolded.String() {
			return game.E(game.CodeActiveHandInProgress, "a hand you are part of is still running")
		}
	}
	return nil
}

// ListRooms returns the open tables with their occupancy. Invite-only rooms
// stay off the list; they are reachable by code.
func (s *RoomService) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	rooms, err := s.store.Rooms(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.SeatCounts(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		if r.InviteOnly {
			continue
		}
		infos = append(infos, RoomInfo{
			ID:         r.ID,
			Name:       r.Name,
			Seated:     counts[r.ID],
			MaxSeats:   r.MaxSeats,
			SmallBlind: r.SmallBlind,
			BigBlind:   r.BigBlind,
			MinBuyIn:   r.MinBuyIn,
			MaxBuyIn:   r.MaxBuyIn,
			Status:     r.Status,
		})
	}
	return infos, nil
}

// Chat broadcasts a message on the room's chat channel. Membership is
// required; nothing is persisted.
func (s *RoomService) Chat(ctx context.Context, roomID, userID, message string) error {
	nickname, err := s.requireSeat(ctx, roomID, userID)
	if err != nil {
		return err
	}
	s.pub.PublishRoom(roomID, events.Event{
		Type:      events.TypeChat,
		Timestamp: s.clock.Now(),
		Payload: events.ChatPayload{
			UserID:   userID,
			Nickname: nickname,
			Message:  message,
		},
	})
	return nil
}

// Emoji broadcasts a reaction on the room's emoji channel.
func (s *RoomService) Emoji(ctx context.Context, roomID, userID, emoji string) error {
	if _, err := s.requireSeat(ctx, roomID, userID); err != nil {
		return err
	}
	s.pub.PublishRoom(roomID, events.Event{
		Type:      events.TypeEmoji,
		Timestamp: s.clock.Now(),
		Payload: events.EmojiPayload{
			UserID: userID,
			Emoji:  emoji,
		},
	})
	return nil
}

// Heartbeat marks the user active in the room. Best effort, never fails.
func (s *RoomService) Heartbeat(roomID, userID string) {
	if s.presence != nil {
		s.presence.RecordHeartbeat(roomID, userID)
	}
}

// Seats lists the room's current seating, for join replies.
func (s *RoomService) Seats(ctx context.Context, roomID string) ([]SeatInfo, error) {
	details, err := s.store.SeatDetails(ctx, roomID)
	if err != nil {
		return nil, err
	}
	infos := make([]SeatInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, SeatInfo{
			UserID:   d.UserID,
			Nickname: d.Nickname,
			Seat:     d.Seat,
			Stack:    d.Stack,
			Status:   d.Status,
		})
	}
	return infos, nil
}

func (s *RoomService) requireSeat(ctx context.Context, roomID, userID string) (string, error) {
	seats, err := s.store.SeatDetails(ctx, roomID)
	if err != nil {
		return "", err
	}
	for _, p := range seats {
		if p.UserID == userID {
			return p.Nickname, nil
		}
	}
	return "", game.E(game.CodeNotInRoom, "not seated in this room")
}

// SeedRooms creates the rooms configured for boot under a house account,
// skipping names that already exist open. Restarts are therefore idempotent.
func (s *RoomService) SeedRooms(ctx context.Context, configs []RoomSettings) error {
	if len(configs) == 0 {
		return nil
	}
	existing, err := s.store.Rooms(ctx)
	if err != nil {
		return err
	}
	open := make(map[string]bool, len(existing))
	for _, r := range existing {
		open[r.Name] = true
	}

	var houseID string
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		house, ok, err := tx.UserByNickname(ctx, "house")
		if err != nil {
			return err
		}
		if ok {
			houseID = house.ID
			return nil
		}
		houseID = uuid.NewString()
		return tx.InsertUser(ctx, &store.User{
			ID:        houseID,
			Nickname:  "house",
			CreatedAt: s.clock.Now(),
		})
	})
	if err != nil {
		return err
	}

	for _, rc := range configs {
		if open[rc.Name] {
			continue
		}
		if _, err := s.CreateRoom(ctx, houseID, RoomConfig{
			Name:           rc.Name,
			MaxSeats:       rc.MaxSeats,
			SmallBlind:     rc.SmallBlind,
			BigBlind:       rc.BigBlind,
			MinBuyIn:       rc.BuyInMin,
			MaxBuyIn:       rc.BuyInMax,
			InviteOnly:     rc.InviteOnly,
			AutoStartDelay: rc.AutoStartDelay,
		}); err != nil {
			return err
		}
	}
	return nil
}

// roomInfo projects a stored room for its creator, invite code included.
func roomInfo(r *store.Room, seated int) RoomInfo {
	return RoomInfo{
		ID:         r.ID,
		Name:       r.Name,
		Seated:     seated,
		MaxSeats:   r.MaxSeats,
		SmallBlind: r.SmallBlind,
		BigBlind:   r.BigBlind,
		MinBuyIn:   r.MinBuyIn,
		MaxBuyIn:   r.MaxBuyIn,
		Status:     r.Status,
		InviteCode: r.InviteCode,
	}
}
