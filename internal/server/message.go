package server

import (
	"encoding/json"
	"time"

	"github.com/cardroom/holdemd/internal/room"
)

// Message is the websocket envelope. Data carries the payload for the given
// Type. A client-supplied RequestID is echoed on the direct reply so callers
// can correlate; event frames carry none.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage wraps a payload in an envelope stamped with the current time.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server payloads.

type AuthData struct {
	Nickname string `json:"nickname"`
}

type CreateRoomData struct {
	Name           string `json:"name"`
	MaxSeats       int    `json:"maxSeats"`
	SmallBlind     int64  `json:"smallBlind"`
	BigBlind       int64  `json:"bigBlind"`
	MinBuyIn       int64  `json:"minBuyIn"`
	MaxBuyIn       int64  `json:"maxBuyIn"`
	InviteOnly     bool   `json:"inviteOnly,omitempty"`
	AutoStartDelay int    `json:"autoStartDelaySeconds,omitempty"`
}

type JoinRoomData struct {
	RoomID     string `json:"roomId,omitempty"`
	InviteCode string `json:"inviteCode,omitempty"`
	Seat       *int   `json:"seat,omitempty"`
	BuyIn      int64  `json:"buyIn"`
}

type LeaveRoomData struct {
	RoomID string `json:"roomId"`
}

type StartHandData struct {
	RoomID string `json:"roomId"`
}

type ActionData struct {
	HandID string `json:"handId"`
	Action string `json:"action"`
	Amount int64  `json:"amount,omitempty"`
}

type GetHandData struct {
	HandID string `json:"handId"`
}

type GetActionsData struct {
	HandID string `json:"handId"`
}

type HeartbeatData struct {
	RoomID string `json:"roomId"`
}

type ChatData struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type EmojiData struct {
	RoomID string `json:"roomId"`
	Emoji  string `json:"emoji"`
}

// Server → Client payloads.

type AuthResponseData struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Wallet   int64  `json:"wallet"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RoomInfo is one room as listings and creation replies show it. The invite
// code only appears on the creation reply.
type RoomInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Seated     int    `json:"seated"`
	MaxSeats   int    `json:"maxSeats"`
	SmallBlind int64  `json:"smallBlind"`
	BigBlind   int64  `json:"bigBlind"`
	MinBuyIn   int64  `json:"minBuyIn"`
	MaxBuyIn   int64  `json:"maxBuyIn"`
	Status     string `json:"status"`
	InviteCode string `json:"inviteCode,omitempty"`
}

type RoomListData struct {
	Rooms []RoomInfo `json:"rooms"`
}

// SeatInfo is one occupied seat in a room_joined reply.
type SeatInfo struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Seat     int    `json:"seat"`
	Stack    int64  `json:"stack"`
	Status   string `json:"status"`
}

type RoomJoinedData struct {
	RoomID  string     `json:"roomId"`
	Seat    int        `json:"seat"`
	Stack   int64      `json:"stack"`
	Players []SeatInfo `json:"players"`
}

type RoomLeftData struct {
	RoomID string `json:"roomId"`
	Wallet int64  `json:"wallet"`
}

type ActionListData struct {
	HandID  string            `json:"handId"`
	Actions []room.ActionView `json:"actions"`
}
