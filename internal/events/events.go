// Package events fans out game, chat and emoji traffic to room subscribers
// and private notifications to user subscribers. Delivery is best effort:
// a subscriber that stops draining loses events rather than stalling the
// table.
package events

import (
	"time"
)

// Type tags an outbound event.
type Type string

const (
	TypeHandStarted    Type = "HAND_STARTED"
	TypePlayerAction   Type = "PLAYER_ACTION"
	TypeStateChanged   Type = "STATE_CHANGED"
	TypeCommunityCards Type = "COMMUNITY_CARDS"
	TypeShowdown       Type = "SHOWDOWN"
	TypeHandSettled    Type = "HAND_SETTLED"
	TypePlayerJoined   Type = "PLAYER_JOINED"
	TypePlayerLeft     Type = "PLAYER_LEFT"
	TypeYourTurn       Type = "YOUR_TURN"
	TypeHoleCards      Type = "HOLE_CARDS"
	TypeChat           Type = "CHAT"
	TypeEmoji          Type = "EMOJI"
)

// Event is one outbound message. Payload shape depends on Type: room
// broadcasts carry hand views, private deliveries carry hole cards or turn
// prompts, chat and emoji carry their own payloads.
type Event struct {
	Type      Type      `json:"type"`
	RoomID    string    `json:"roomId,omitempty"`
	HandID    string    `json:"handId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// ChatPayload is the payload of a TypeChat event.
type ChatPayload struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Message  string `json:"message"`
}

// PlayerJoinedPayload is the payload of a TypePlayerJoined event.
type PlayerJoinedPayload struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Seat     int    `json:"seat"`
	Stack    int64  `json:"stack"`
}

// PlayerLeftPayload is the payload of a TypePlayerLeft event.
type PlayerLeftPayload struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Seat     int    `json:"seat"`
}

// EmojiPayload is the payload of a TypeEmoji event.
type EmojiPayload struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// HoleCardsPayload is the payload of a private TypeHoleCards event.
type HoleCardsPayload struct {
	HandID string   `json:"handId"`
	Cards  []string `json:"cards"`
}

// YourTurnPayload is the payload of a private TypeYourTurn event.
type YourTurnPayload struct {
	HandID   string `json:"handId"`
	Deadline int64  `json:"deadlineUnixMs"`
	Actions  any    `json:"actions,omitempty"`
}
