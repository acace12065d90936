package server

// MessageType tags a websocket frame with type safety.
type MessageType string

// Client to server messages.
const (
	MessageTypeAuth       MessageType = "auth"
	MessageTypeCreateRoom MessageType = "create_room"
	MessageTypeJoinRoom   MessageType = "join_room"
	MessageTypeLeaveRoom  MessageType = "leave_room"
	MessageTypeListRooms  MessageType = "list_rooms"
	MessageTypeStartHand  MessageType = "start_hand"
	MessageTypeAction     MessageType = "action"
	MessageTypeGetHand    MessageType = "get_hand"
	MessageTypeGetActions MessageType = "get_actions"
	MessageTypeHeartbeat  MessageType = "heartbeat"
	MessageTypeChat       MessageType = "chat"
	MessageTypeEmoji      MessageType = "emoji"
)

// Server to client messages. Game traffic additionally arrives as
// MessageTypeEvent frames wrapping events.Event.
const (
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeRoomCreated  MessageType = "room_created"
	MessageTypeRoomJoined   MessageType = "room_joined"
	MessageTypeRoomLeft     MessageType = "room_left"
	MessageTypeRoomList     MessageType = "room_list"
	MessageTypeHandView     MessageType = "hand_view"
	MessageTypeActionList   MessageType = "action_list"
	MessageTypeEvent        MessageType = "event"
	MessageTypeError        MessageType = "error"
)

// String returns the string representation of the message type.
func (mt MessageType) String() string {
	return string(mt)
}
