package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/cardroom/holdemd/internal/events"
	"github.com/cardroom/holdemd/internal/game"
	"github.com/cardroom/holdemd/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

// Transport-level error codes, lowercase to keep them apart from the
// uppercase domain codes. These cover frames that never reach the domain.
const (
	errInvalidMessage   = "invalid_message"
	errNotAuthenticated = "not_authenticated"
	errInvalidAuth      = "invalid_auth"
	errUnknownType      = "unknown_message_type"
)

// Connection is one websocket client. Frames are handled in order on the
// read pump; replies and forwarded events funnel through the buffered send
// channel so only the write pump touches the socket.
type Connection struct {
	ws      *websocket.Conn
	send    chan *Message
	service *RoomService
	manager *room.Manager
	logger  *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.Mutex
	userID   string
	nickname string
	userSub  *events.Subscription
	roomSubs map[string]*events.Subscription
}

// NewConnection wraps an upgraded websocket. Call Start to begin serving.
func NewConnection(ws *websocket.Conn, service *RoomService, manager *room.Manager, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ws:       ws,
		send:     make(chan *Message, sendBuffer),
		service:  service,
		manager:  manager,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		roomSubs: make(map[string]*events.Subscription),
	}
}

// Start launches the read and write pumps and returns immediately.
func (c *Connection) Start() {
	go c.readPump()
	go c.writePump()
}

// Done closes when the connection has shut down.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// UserID returns the authenticated user id, or "" before auth.
func (c *Connection) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Close tears the connection down once: the context stops the pumps and
// aborts in-flight handlers, closing the subscriptions ends the forwarders,
// and closing send lets the writer drain and exit.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.userSub != nil {
			c.userSub.Close()
		}
		for _, sub := range c.roomSubs {
			sub.Close()
		}
		c.mu.Unlock()
		close(c.send)
		c.ws.Close()
	})
}

// SendMessage queues a frame for the writer. A full buffer means the client
// stopped reading, so the connection is dropped rather than blocking the
// caller. The recover covers sends racing Close.
func (c *Connection) SendMessage(msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("send on closed connection", "type", msg.Type)
		}
	}()
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("send buffer full, dropping connection", "type", msg.Type)
		c.Close()
	}
}

func (c *Connection) readPump() {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "err", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Warn("websocket write failed", "err", err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// forward copies one subscription onto the wire until it closes.
func (c *Connection) forward(sub *events.Subscription) {
	for ev := range sub.C {
		msg, err := NewMessage(MessageTypeEvent, ev)
		if err != nil {
			c.logger.Error("marshal event", "event", ev.Type, "err", err)
			continue
		}
		c.SendMessage(msg)
	}
}

// subscribeRoom attaches the room feed once; rejoining reuses it.
func (c *Connection) subscribeRoom(roomID string) {
	c.mu.Lock()
	if _, ok := c.roomSubs[roomID]; ok {
		c.mu.Unlock()
		return
	}
	sub := c.manager.Publisher().SubscribeRoom(roomID)
	c.roomSubs[roomID] = sub
	c.mu.Unlock()
	go c.forward(sub)
}

func (c *Connection) unsubscribeRoom(roomID string) {
	c.mu.Lock()
	sub, ok := c.roomSubs[roomID]
	if ok {
		delete(c.roomSubs, roomID)
	}
	c.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// handleMessage dispatches one frame. Handlers run synchronously on the
// read pump, so a client's requests are processed in the order sent.
func (c *Connection) handleMessage(msg *Message) {
	if msg.Type != MessageTypeAuth && c.userID == "" {
		c.sendError(errNotAuthenticated, "authenticate first", msg.RequestID)
		return
	}

	switch msg.Type {
	case MessageTypeAuth:
		c.handleAuth(msg)
	case MessageTypeCreateRoom:
		c.handleCreateRoom(msg)
	case MessageTypeJoinRoom:
		c.handleJoinRoom(msg)
	case MessageTypeLeaveRoom:
		c.handleLeaveRoom(msg)
	case MessageTypeListRooms:
		c.handleListRooms(msg)
	case MessageTypeStartHand:
		c.handleStartHand(msg)
	case MessageTypeAction:
		c.handleAction(msg)
	case MessageTypeGetHand:
		c.handleGetHand(msg)
	case MessageTypeGetActions:
		c.handleGetActions(msg)
	case MessageTypeHeartbeat:
		c.handleHeartbeat(msg)
	case MessageTypeChat:
		c.handleChat(msg)
	case MessageTypeEmoji:
		c.handleEmoji(msg)
	default:
		c.sendError(errUnknownType, fmt.Sprintf("unknown message type %q", msg.Type), msg.RequestID)
	}
}

func (c *Connection) handleAuth(msg *Message) {
	var data AuthData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError(errInvalidMessage, "invalid auth payload", msg.RequestID)
		return
	}
	if c.userID != "" {
		c.sendError(errInvalidAuth, "already authenticated", msg.RequestID)
		return
	}
	nickname := strings.TrimSpace(data.Nickname)
	if nickname == "" || len(nickname) > 32 {
		c.sendError(errInvalidAuth, "nickname must be 1 to 32 characters", msg.RequestID)
		return
	}

	user, err := c.service.Authenticate(c.ctx, nickname)
	if err != nil {
		c.sendDomainError(err, msg.RequestID)
		return
	}

	sub := c.manager.Publisher().SubscribeUser(user.ID)
	c.mu.Lock()
	c.userID = user.ID
	c.nickname = user.Nickname
	c.userSub = sub
	c.mu.Unlock()
	go c.forward(sub)

	c.reply(MessageTypeAuthResponse, AuthResponseData{
		UserID:   user.ID,
		Nickname: user.Nickname,
		Wallet:   user.Wallet,
	}, msg.RequestID)
}

func (c *Connection) handleCreateRoom(msg *Message) {
	var data CreateRoomData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError(errInvalidMessage, "invalid create_room payload", msg.RequestID)
		return
	}
	r, err := c.service.CreateRoom(c.ctx, c.userID, RoomConfig{
		Name:           data.Name,
		MaxSeats:       data.MaxSeats,
		SmallBlind:     data.SmallBlind,
		BigBlind:       data.BigBlind,
		MinBuyIn:       data.MinBuyIn,
		MaxBuyIn:       data.MaxBuyIn,
		InviteOnly:     data.InviteOnly,
		AutoStartDelay: data.AutoStartDelay,
	})
	if err != nil {
		c.sendDomainError(err, msg.RequestID)
		return
	}
	c.reply(MessageTypeRoomCreated, roomInfo(r, 0), msg.RequestID)
}

func (c *Connection) handleJoinRoom(msg *Message) {
	var data JoinRoomData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError(errInvalidMessage, "invalid join_room payload", msg.RequestID)
		return
	}
	if data.RoomID == "" && data.InviteCode == "" {
		c.sendError(errInvalidMessage, "room_id or invite_code required", msg.RequestID)
		return
	}
	seat, err := c.service.JoinRoom(c.ctx, c.userID, JoinRequest{
		RoomID:     data.RoomID,
		InviteCode: data.InviteCode,
		Seat:       data.Seat,
		BuyIn:      data.BuyIn,
	})
	if err != nil {
		c.sendDomainError(err, msg.RequestID)
		return
	}
	c.subscribeRoom(seat.RoomID)

	players, err := c.service.Seats(c.ctx, seat.RoomID)
	if err != nil {
		c.logger.Error("list seats after join", "room", seat.RoomID, "err", err)
	}
	c.reply(MessageTypeRoomJoined, RoomJoinedData{
		RoomID:  seat.RoomID,
		Seat:    seat.Seat,
		Stack:   seat.Stack,
		Players: players,
	}, msg.RequestID)
}

func (c *Connection) handleLeaveRoom(msg *Message) {
	var data LeaveRoomData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.RoomID == "" {
		c.sendError(errInvalidMessage, "invalid leave_room payload", msg.RequestID)
		return
	}
	wallet, err := c.service.LeaveRoom(c.ctx, data.RoomID, c.userID)
	if err != nil {
		c.sendDomainError(err, msg.RequestID)
		return
	}
	c.unsubscribeRoom(data.RoomID)
	c.reply(MessageTypeRoomLeft, RoomLeftData{RoomID: data.RoomID, Wallet: wallet}, msg.RequestID)
}

func (c *Connection) handleListRooms(msg *Message) {
	rooms, err := c.service.ListRooms(c.ctx)
	if err != nil {
		c.sendDomainError(err, msg.RequestID)
		return
	}
	c.reply(MessageTypeRoomList, RoomListData{Rooms: rooms}, msg.RequestID)
}

func (c *Connection) handleStartHand(msg *Message) {
	var data StartHandData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.RoomID == "" {
		c.sendError(errInvalidMessage, "invalid start_hand payload", msg.RequestID)
		return
	}
	view, err := c.manager.StartNewHand(c.ctx, data.RoomID, c.userID)
	if err != nil {
		c.sendDomainError(err, msg.RequestID)
		return
	}
	c.reply(MessageTypeHandView, view, msg.RequestID)
}

func (c *Connection) handleAction(msg *Message) {
	var data ActionData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.HandID == "" {
		c.sendError(errInvalidMessage, "invalid action payload", msg.RequestID)
		return
	}
	action, err := game.ParseActionType(data.Action)
	if err != nil {
		c.sendError(errInvalidMessage, err.Error(), msg.RequestID)
		return
	}
	view, err := c.manager.ProcessAction(c.ctx, data.HandID, c.userID, action, data.Amount)
	if err != nil {
		c.sendDomainError(err, msg.RequestID)
		return
	}
	c.service.Heartbeat(view.RoomID, c.userID)
	c.reply(MessageTypeHandView, view, msg.RequestID)
}

func (c *Connection) handleGetHand(msg *Message) {
	var data GetHandData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.HandID == "" {
		c.sendError(errInvalidMessage, "invalid get_hand payload", msg.RequestID)
		return
	}
	view, err := c.manager.GetHand(c.ctx, data.HandID, c.userID)
	if err != nil {
		c.sendDomainError(err, msg.RequestID)
		return
	}
	c.reply(MessageTypeHandView, view, msg.RequestID)
}

func (c *Connection) handleGetActions(msg *Message) {
	var data GetActionsData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.HandID == "" {
		c.sendError(errInvalidMessage, "invalid get_actions payload", msg.RequestID)
		return
	}
	actions, err := c.manager.GetActions(c.ctx, data.HandID)
	if err != nil {
		c.sendDomainError(err, msg.RequestID)
		return
	}
	c.reply(MessageTypeActionList, ActionListData{HandID: data.HandID, Actions: actions}, msg.RequestID)
}

// handleHeartbeat never replies, even for unknown rooms. Liveness pings are
// fire and forget.
func (c *Connection) handleHeartbeat(msg *Message) {
	var data HeartbeatData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.RoomID == "" {
		return
	}
	c.service.Heartbeat(data.RoomID, c.userID)
}

func (c *Connection) handleChat(msg *Message) {
	var data ChatData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.RoomID == "" {
		c.sendError(errInvalidMessage, "invalid chat payload", msg.RequestID)
		return
	}
	text := strings.TrimSpace(data.Message)
	if text == "" {
		return
	}
	if err := c.service.Chat(c.ctx, data.RoomID, c.userID, text); err != nil {
		c.sendDomainError(err, msg.RequestID)
		return
	}
	c.service.Heartbeat(data.RoomID, c.userID)
}

func (c *Connection) handleEmoji(msg *Message) {
	var data EmojiData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.RoomID == "" || data.Emoji == "" {
		c.sendError(errInvalidMessage, "invalid emoji payload", msg.RequestID)
		return
	}
	if err := c.service.Emoji(c.ctx, data.RoomID, c.userID, data.Emoji); err != nil {
		c.sendDomainError(err, msg.RequestID)
		return
	}
	c.service.Heartbeat(data.RoomID, c.userID)
}

// reply sends a typed frame, echoing the request id.
func (c *Connection) reply(t MessageType, data any, requestID string) {
	msg, err := NewMessage(t, data)
	if err != nil {
		c.logger.Error("marshal reply", "type", t, "err", err)
		c.sendError(string(game.CodeInternal), "could not encode reply", requestID)
		return
	}
	msg.RequestID = requestID
	c.SendMessage(msg)
}

// sendError ships an error frame, echoing the request id when present.
func (c *Connection) sendError(code, message, requestID string) {
	msg, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		c.logger.Error("marshal error frame", "err", err)
		return
	}
	msg.RequestID = requestID
	c.SendMessage(msg)
}

// sendDomainError surfaces a domain failure with its own code intact.
func (c *Connection) sendDomainError(err error, requestID string) {
	var ge *game.Error
	if errors.As(err, &ge) {
		c.sendError(string(ge.Code), ge.Message, requestID)
		return
	}
	c.sendError(string(game.CodeInternal), err.Error(), requestID)
}
