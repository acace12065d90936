package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/holdemd/internal/events"
	"github.com/cardroom/holdemd/internal/room"
	"github.com/cardroom/holdemd/internal/store"
)

func newGateway(t *testing.T) (*Server, string) {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})

	st, err := store.Open(context.Background(), store.Config{
		Driver: "sqlite3", DSN: ":memory:", Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := quartz.NewReal()
	pub := events.NewPublisher(logger, 0)
	pres := room.NewPresence(clock)
	mgr := room.NewManager(st, pub, clock, logger)
	sched := room.NewScheduler(mgr, pres, clock, logger, room.Timeouts{})
	mgr.SetScheduler(sched)
	t.Cleanup(sched.Shutdown)
	t.Cleanup(mgr.Shutdown)

	svc := NewRoomService(st, pub, pres, clock, logger)
	srv := NewServer("localhost:0", svc, mgr, logger)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(ts.Close)

	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

// eventFrame is an events.Event as read off the wire, payload still raw.
type eventFrame struct {
	Type    events.Type     `json:"type"`
	RoomID  string          `json:"roomId"`
	HandID  string          `json:"handId"`
	Payload json.RawMessage `json:"payload"`
}

// wsClient drives one websocket connection. Frames read while waiting for a
// particular type are held back, so replies and events can be awaited in
// any order.
type wsClient struct {
	t       *testing.T
	ws      *websocket.Conn
	pending []*Message
}

func dialGateway(t *testing.T, url string) *wsClient {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return &wsClient{t: t, ws: ws}
}

func (c *wsClient) send(typ MessageType, data any, requestID string) {
	c.t.Helper()
	msg, err := NewMessage(typ, data)
	require.NoError(c.t, err)
	msg.RequestID = requestID
	require.NoError(c.t, c.ws.WriteJSON(msg))
}

func (c *wsClient) next() *Message {
	c.t.Helper()
	c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(c.t, c.ws.ReadJSON(&msg))
	return &msg
}

func (c *wsClient) recv(typ MessageType) *Message {
	c.t.Helper()
	for i, msg := range c.pending {
		if msg.Type == typ {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return msg
		}
	}
	for range 50 {
		msg := c.next()
		if msg.Type == typ {
			return msg
		}
		c.pending = append(c.pending, msg)
	}
	c.t.Fatalf("no %s frame arrived", typ)
	return nil
}

func (c *wsClient) recvEvent(typ events.Type) eventFrame {
	c.t.Helper()
	match := func(msg *Message) (eventFrame, bool) {
		if msg.Type != MessageTypeEvent {
			return eventFrame{}, false
		}
		var ev eventFrame
		require.NoError(c.t, json.Unmarshal(msg.Data, &ev))
		return ev, ev.Type == typ
	}
	for i, msg := range c.pending {
		if ev, ok := match(msg); ok {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return ev
		}
	}
	for range 50 {
		msg := c.next()
		if ev, ok := match(msg); ok {
			return ev
		}
		c.pending = append(c.pending, msg)
	}
	c.t.Fatalf("no %s event arrived", typ)
	return eventFrame{}
}

func (c *wsClient) decode(msg *Message, v any) {
	c.t.Helper()
	require.NoError(c.t, json.Unmarshal(msg.Data, v))
}

func (c *wsClient) auth(nickname string) AuthResponseData {
	c.t.Helper()
	c.send(MessageTypeAuth, AuthData{Nickname: nickname}, "")
	var resp AuthResponseData
	c.decode(c.recv(MessageTypeAuthResponse), &resp)
	return resp
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestConnectionLifecycle(t *testing.T) {
	t.Parallel()
	srv, url := newGateway(t)

	c := dialGateway(t, url)
	c.auth("alice")
	waitFor(t, func() bool { return srv.ConnectionCount() == 1 })

	require.NoError(t, c.ws.Close())
	waitFor(t, func() bool { return srv.ConnectionCount() == 0 })
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()
	_, url := newGateway(t)
	c := dialGateway(t, url)

	c.send(MessageTypeListRooms, nil, "req-1")
	msg := c.recv(MessageTypeError)
	var e ErrorData
	c.decode(msg, &e)
	assert.Equal(t, errNotAuthenticated, e.Code)
	assert.Equal(t, "req-1", msg.RequestID)
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()
	_, url := newGateway(t)

	c := dialGateway(t, url)
	resp := c.auth("alice")
	assert.NotEmpty(t, resp.UserID)
	assert.Equal(t, "alice", resp.Nickname)
	assert.Equal(t, DefaultStartingWallet, resp.Wallet)

	c.send(MessageTypeAuth, AuthData{Nickname: "alice"}, "")
	var e ErrorData
	c.decode(c.recv(MessageTypeError), &e)
	assert.Equal(t, errInvalidAuth, e.Code, "re-auth on a live connection is refused")

	anon := dialGateway(t, url)
	anon.send(MessageTypeAuth, AuthData{Nickname: "   "}, "")
	var blank ErrorData
	anon.decode(anon.recv(MessageTypeError), &blank)
	assert.Equal(t, errInvalidAuth, blank.Code, "a blank nickname is refused")

	other := dialGateway(t, url)
	again := other.auth("alice")
	assert.Equal(t, resp.UserID, again.UserID, "same nickname resolves to the same account")
}

func TestUnknownMessageType(t *testing.T) {
	t.Parallel()
	_, url := newGateway(t)
	c := dialGateway(t, url)
	c.auth("alice")

	c.send(MessageType("bogus"), nil, "")
	var e ErrorData
	c.decode(c.recv(MessageTypeError), &e)
	assert.Equal(t, errUnknownType, e.Code)
}

func TestMalformedPayload(t *testing.T) {
	t.Parallel()
	_, url := newGateway(t)
	c := dialGateway(t, url)
	c.auth("alice")

	require.NoError(t, c.ws.WriteJSON(&Message{
		Type: MessageTypeAction,
		Data: json.RawMessage(`"not an object"`),
	}))
	var e ErrorData
	c.decode(c.recv(MessageTypeError), &e)
	assert.Equal(t, errInvalidMessage, e.Code)
}

func TestDomainErrorsKeepTheirCodes(t *testing.T) {
	t.Parallel()
	_, url := newGateway(t)
	c := dialGateway(t, url)
	c.auth("alice")

	c.send(MessageTypeCreateRoom, CreateRoomData{
		MaxSeats: 6, SmallBlind: 5, BigBlind: 11, MinBuyIn: 100, MaxBuyIn: 1000,
	}, "create-1")
	msg := c.recv(MessageTypeError)
	var e ErrorData
	c.decode(msg, &e)
	assert.Equal(t, "INVALID_BLIND_RATIO", e.Code)
	assert.Equal(t, "create-1", msg.RequestID)
}

func TestRoomFlowOverWebsocket(t *testing.T) {
	t.Parallel()
	_, url := newGateway(t)

	alice := dialGateway(t, url)
	aliceAuth := alice.auth("alice")
	bob := dialGateway(t, url)
	bobAuth := bob.auth("bob")

	// Alice opens a heads-up table.
	alice.send(MessageTypeCreateRoom, CreateRoomData{
		Name: "heads-up", MaxSeats: 2, SmallBlind: 5, BigBlind: 10,
		MinBuyIn: 100, MaxBuyIn: 1000,
	}, "create-1")
	var created RoomInfo
	msg := alice.recv(MessageTypeRoomCreated)
	alice.decode(msg, &created)
	assert.Equal(t, "create-1", msg.RequestID)
	assert.Len(t, created.InviteCode, inviteLength, "only the creator sees the code")

	// Both sit down.
	alice.send(MessageTypeJoinRoom, JoinRoomData{RoomID: created.ID, BuyIn: 500}, "")
	var joined RoomJoinedData
	alice.decode(alice.recv(MessageTypeRoomJoined), &joined)
	assert.Equal(t, 0, joined.Seat)
	assert.Equal(t, int64(500), joined.Stack)

	bob.send(MessageTypeJoinRoom, JoinRoomData{RoomID: created.ID, BuyIn: 500}, "")
	var bobJoined RoomJoinedData
	bob.decode(bob.recv(MessageTypeRoomJoined), &bobJoined)
	assert.Equal(t, 1, bobJoined.Seat)
	assert.Len(t, bobJoined.Players, 2)

	// Alice's room feed reports bob's arrival.
	ev := alice.recvEvent(events.TypePlayerJoined)
	var arrival events.PlayerJoinedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &arrival))
	assert.Equal(t, bobAuth.UserID, arrival.UserID)

	// The lobby shows the table with both seats filled.
	alice.send(MessageTypeListRooms, nil, "")
	var list RoomListData
	alice.decode(alice.recv(MessageTypeRoomList), &list)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, 2, list.Rooms[0].Seated)
	assert.Empty(t, list.Rooms[0].InviteCode, "listings never carry invite codes")

	// Deal the first hand.
	alice.send(MessageTypeStartHand, StartHandData{RoomID: created.ID}, "start-1")
	var view room.HandView
	msg = alice.recv(MessageTypeHandView)
	alice.decode(msg, &view)
	assert.Equal(t, "start-1", msg.RequestID)
	assert.Equal(t, "PRE_FLOP", view.State)
	require.Len(t, view.Players, 2)

	// Hole cards arrive privately on each user feed.
	var hole events.HoleCardsPayload
	aliceCards := alice.recvEvent(events.TypeHoleCards)
	require.NoError(t, json.Unmarshal(aliceCards.Payload, &hole))
	assert.Len(t, hole.Cards, 2)
	bob.recvEvent(events.TypeHoleCards)

	// Heads-up the button posts the small blind and opens; the first hand
	// puts the button on seat 0, so alice is due.
	require.Equal(t, aliceAuth.UserID, view.CurrentID)

	alice.send(MessageTypeAction, ActionData{HandID: view.HandID, Action: "FOLD"}, "fold-1")
	var after room.HandView
	alice.decode(alice.recv(MessageTypeHandView), &after)
	assert.Equal(t, "SETTLEMENT", after.State)

	bob.recvEvent(events.TypeHandSettled)

	// The recorded log carries the blinds, the fold and the settlement.
	alice.send(MessageTypeGetActions, GetActionsData{HandID: view.HandID}, "")
	var history ActionListData
	alice.decode(alice.recv(MessageTypeActionList), &history)
	require.NotEmpty(t, history.Actions)
	names := make([]string, 0, len(history.Actions))
	for _, a := range history.Actions {
		names = append(names, a.Action)
	}
	assert.Contains(t, names, "SMALL_BLIND")
	assert.Contains(t, names, "FOLD")
	assert.Equal(t, "SETTLE", names[len(names)-1])

	// Alice stands up with the folded blind gone.
	alice.send(MessageTypeLeaveRoom, LeaveRoomData{RoomID: created.ID}, "")
	var left RoomLeftData
	alice.decode(alice.recv(MessageTypeRoomLeft), &left)
	assert.Equal(t, aliceAuth.Wallet-5, left.Wallet)

	bob.recvEvent(events.TypePlayerLeft)
}

func TestJoinByInviteOverWebsocket(t *testing.T) {
	t.Parallel()
	_, url := newGateway(t)

	owner := dialGateway(t, url)
	owner.auth("owner")
	owner.send(MessageTypeCreateRoom, CreateRoomData{
		Name: "private", MaxSeats: 6, SmallBlind: 5, BigBlind: 10,
		MinBuyIn: 100, MaxBuyIn: 1000, InviteOnly: true,
	}, "")
	var created RoomInfo
	owner.decode(owner.recv(MessageTypeRoomCreated), &created)

	// The private table stays out of the lobby.
	owner.send(MessageTypeListRooms, nil, "")
	var list RoomListData
	owner.decode(owner.recv(MessageTypeRoomList), &list)
	assert.Empty(t, list.Rooms)

	guest := dialGateway(t, url)
	guest.auth("guest")
	guest.send(MessageTypeJoinRoom, JoinRoomData{
		InviteCode: strings.ToLower(created.InviteCode), BuyIn: 200,
	}, "")
	var joined RoomJoinedData
	guest.decode(guest.recv(MessageTypeRoomJoined), &joined)
	assert.Equal(t, created.ID, joined.RoomID)
}

func TestHeartbeatIsSilent(t *testing.T) {
	t.Parallel()
	_, url := newGateway(t)
	c := dialGateway(t, url)
	c.auth("alice")

	// A heartbeat produces no reply; the next frame answers the following
	// request.
	c.send(MessageTypeHeartbeat, HeartbeatData{RoomID: "nowhere"}, "")
	c.send(MessageTypeListRooms, nil, "list-1")
	msg := c.recv(MessageTypeRoomList)
	assert.Equal(t, "list-1", msg.RequestID)
	assert.Empty(t, c.pending, "the heartbeat must not answer")
}
