package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/cardroom/holdemd/internal/events"
	"github.com/cardroom/holdemd/internal/game"
	"github.com/cardroom/holdemd/internal/room"
	"github.com/cardroom/holdemd/internal/server"
)

// heartbeatEvery is how often a seated client pings presence. Well inside
// the server's 15 second activity window.
const heartbeatEvery = 5 * time.Second

const maxLogLines = 500

// heartbeatMsg fires the periodic presence ping.
type heartbeatMsg time.Time

// wireEvent mirrors events.Event with the payload left raw so each event
// type can decode its own shape.
type wireEvent struct {
	Type    events.Type     `json:"type"`
	RoomID  string          `json:"roomId"`
	HandID  string          `json:"handId"`
	Payload json.RawMessage `json:"payload"`
}

type model struct {
	sess   *session
	styles *styles
	logger *log.Logger

	vp    viewport.Model
	input textinput.Model
	lines []string
	ready bool

	nickname string
	userID   string
	wallet   int64

	roomID string
	seat   int
	handID string

	width    int
	height   int
	quitting bool
}

func newModel(sess *session, nickname string, st *styles, logger *log.Logger) *model {
	ti := textinput.New()
	ti.Placeholder = "type help and press enter"
	ti.Focus()
	ti.CharLimit = 256
	return &model{
		sess:     sess,
		styles:   st,
		logger:   logger.WithPrefix("ui"),
		input:    ti,
		nickname: nickname,
		seat:     -1,
	}
}

func (m *model) Init() tea.Cmd {
	m.push(m.styles.Header.Render("holdem client"))
	m.push("connecting as " + m.nickname + ", type help for commands")
	if err := m.sess.send(server.MessageTypeAuth, server.AuthData{Nickname: m.nickname}); err != nil {
		m.push(m.styles.Error.Render("send failed: " + err.Error()))
	}
	return tea.Batch(textinput.Blink, m.listen(), m.heartbeat())
}

// listen yields the next server frame as a tea message. It is re-armed on
// every frame so the stream and the UI stay in lockstep.
func (m *model) listen() tea.Cmd {
	return func() tea.Msg { return m.sess.next() }
}

func (m *model) heartbeat() tea.Cmd {
	return tea.Tick(heartbeatEvery, func(t time.Time) tea.Msg { return heartbeatMsg(t) })
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		logHeight := msg.Height - 7
		if logHeight < 3 {
			logHeight = 3
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width-4, logHeight)
			m.ready = true
		} else {
			m.vp.Width = msg.Width - 4
			m.vp.Height = logHeight
		}
		m.input.Width = msg.Width - 8
		m.vp.SetContent(strings.Join(m.lines, "\n"))
		m.vp.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m.quit()
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			return m.dispatch(line)
		case tea.KeyPgUp:
			m.vp.HalfViewUp()
			return m, nil
		case tea.KeyPgDown:
			m.vp.HalfViewDown()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case heartbeatMsg:
		if m.roomID != "" {
			if err := m.sess.send(server.MessageTypeHeartbeat, server.HeartbeatData{RoomID: m.roomID}); err != nil {
				m.logger.Debug("heartbeat dropped", "error", err)
			}
		}
		return m, m.heartbeat()

	case incoming:
		if msg.err != nil {
			m.push(m.styles.Error.Render("connection lost: " + msg.err.Error()))
			return m.quit()
		}
		if msg.msg == nil {
			return m.quit()
		}
		m.handleServer(msg.msg)
		return m, m.listen()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	if m.quitting {
		return "goodbye\n"
	}
	if !m.ready {
		return "loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.LogPane.Width(m.width-2).Render(m.vp.View()),
		m.styles.InputPane.Width(m.width-2).Render(m.input.View()),
		m.statusLine(),
	)
}

func (m *model) statusLine() string {
	parts := []string{m.nickname}
	if m.userID != "" {
		parts = append(parts, fmt.Sprintf("wallet %d", m.wallet))
	}
	if m.roomID != "" {
		parts = append(parts, fmt.Sprintf("room %s seat %d", shortID(m.roomID), m.seat))
	}
	if m.handID != "" {
		parts = append(parts, "hand "+shortID(m.handID))
	}
	parts = append(parts, "ctrl+c quits")
	return m.styles.Info.Render(" " + strings.Join(parts, "  |  "))
}

func (m *model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.sess.close()
	return m, tea.Quit
}

// push appends a line to the log pane, trimming history past maxLogLines.
func (m *model) push(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
	if m.ready {
		m.vp.SetContent(strings.Join(m.lines, "\n"))
		m.vp.GotoBottom()
	}
}

func (m *model) pushAll(lines []string) {
	for _, line := range lines {
		m.push(line)
	}
}

func (m *model) warn(text string)  { m.push(m.styles.Warning.Render(text)) }
func (m *model) fail(text string)  { m.push(m.styles.Error.Render(text)) }
func (m *model) note(text string)  { m.push(m.styles.Info.Render(text)) }
func (m *model) cheer(text string) { m.push(m.styles.Success.Render(text)) }

// request queues a frame and surfaces queueing failures in the log.
func (m *model) request(t server.MessageType, data any) {
	if err := m.sess.send(t, data); err != nil {
		m.fail("send failed: " + err.Error())
	}
}

// dispatch parses one input line and issues the matching request.
func (m *model) dispatch(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help":
		m.pushHelp()
	case "quit", "exit":
		return m.quit()
	case "list":
		m.request(server.MessageTypeListRooms, nil)
	case "create":
		m.cmdCreate(args)
	case "join":
		m.cmdJoin(args)
	case "leave":
		if m.inRoom() {
			m.request(server.MessageTypeLeaveRoom, server.LeaveRoomData{RoomID: m.roomID})
		}
	case "start":
		if m.inRoom() {
			m.request(server.MessageTypeStartHand, server.StartHandData{RoomID: m.roomID})
		}
	case "hand":
		if m.inHand() {
			m.request(server.MessageTypeGetHand, server.GetHandData{HandID: m.handID})
		}
	case "log":
		if m.inHand() {
			m.request(server.MessageTypeGetActions, server.GetActionsData{HandID: m.handID})
		}
	case "fold", "check", "call", "allin":
		m.cmdAction(cmd, 0)
	case "raise":
		if len(args) != 1 {
			m.warn("usage: raise <total-bet>")
			break
		}
		amount, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || amount <= 0 {
			m.warn("raise amount must be a positive number")
			break
		}
		m.cmdAction(cmd, amount)
	case "chat", "say":
		if len(args) == 0 {
			m.warn("usage: chat <message>")
			break
		}
		if m.inRoom() {
			m.request(server.MessageTypeChat, server.ChatData{RoomID: m.roomID, Message: strings.Join(args, " ")})
		}
	case "emoji":
		if len(args) != 1 {
			m.warn("usage: emoji <emoji>")
			break
		}
		if m.inRoom() {
			m.request(server.MessageTypeEmoji, server.EmojiData{RoomID: m.roomID, Emoji: args[0]})
		}
	default:
		m.warn("unknown command: " + cmd + " (try help)")
	}
	return m, nil
}

func (m *model) inRoom() bool {
	if m.roomID == "" {
		m.warn("not seated in a room, join one first")
		return false
	}
	return true
}

func (m *model) inHand() bool {
	if m.handID == "" {
		m.warn("no hand in progress")
		return false
	}
	return true
}

func (m *model) pushHelp() {
	m.pushAll([]string{
		m.styles.Header.Render("commands"),
		"  list                              list open rooms",
		"  create <small-blind> [name]       create a room (big blind is twice the small)",
		"  join <room-id|code> <buy-in> [seat]",
		"  leave                             leave the room, stack returns to wallet",
		"  start                             deal the next hand",
		"  fold | check | call | allin       act on your turn",
		"  raise <total-bet>                 raise to a total for this street",
		"  hand                              show the current hand",
		"  log                               show the current hand's action log",
		"  chat <message> / emoji <emoji>",
		"  quit",
	})
}

func (m *model) cmdCreate(args []string) {
	if len(args) == 0 {
		m.warn("usage: create <small-blind> [name]")
		return
	}
	sb, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || sb <= 0 {
		m.warn("small blind must be a positive number")
		return
	}
	bb := sb * 2
	m.request(server.MessageTypeCreateRoom, server.CreateRoomData{
		Name:       strings.Join(args[1:], " "),
		MaxSeats:   6,
		SmallBlind: sb,
		BigBlind:   bb,
		MinBuyIn:   bb * 50,
		MaxBuyIn:   bb * 500,
	})
}

func (m *model) cmdJoin(args []string) {
	if len(args) < 2 {
		m.warn("usage: join <room-id|invite-code> <buy-in> [seat]")
		return
	}
	buyIn, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || buyIn <= 0 {
		m.warn("buy-in must be a positive number")
		return
	}
	req := server.JoinRoomData{BuyIn: buyIn}
	// Room ids are UUIDs; anything short is treated as an invite code.
	if len(args[0]) <= 8 {
		req.InviteCode = args[0]
	} else {
		req.RoomID = args[0]
	}
	if len(args) > 2 {
		seat, err := strconv.Atoi(args[2])
		if err != nil {
			m.warn("seat must be a number")
			return
		}
		req.Seat = &seat
	}
	m.request(server.MessageTypeJoinRoom, req)
}

func (m *model) cmdAction(name string, amount int64) {
	if !m.inHand() {
		return
	}
	var t game.ActionType
	switch name {
	case "fold":
		t = game.ActionFold
	case "check":
		t = game.ActionCheck
	case "call":
		t = game.ActionCall
	case "raise":
		t = game.ActionRaise
	case "allin":
		t = game.ActionAllIn
	}
	m.request(server.MessageTypeAction, server.ActionData{
		HandID: m.handID,
		Action: t.String(),
		Amount: amount,
	})
}

func (m *model) handleServer(msg *server.Message) {
	switch msg.Type {
	case server.MessageTypeAuthResponse:
		var d server.AuthResponseData
		if !m.decode(msg, &d) {
			return
		}
		m.userID, m.wallet = d.UserID, d.Wallet
		m.cheer(fmt.Sprintf("authenticated as %s, wallet %d", d.Nickname, d.Wallet))

	case server.MessageTypeRoomCreated:
		var d server.RoomInfo
		if !m.decode(msg, &d) {
			return
		}
		m.cheer(fmt.Sprintf("room %q created: %s", d.Name, d.ID))
		if d.InviteCode != "" {
			m.push("invite code: " + m.styles.Header.Render(d.InviteCode))
		}
		m.note(fmt.Sprintf("blinds %d/%d, buy-in %d..%d, join with: join %s <buy-in>",
			d.SmallBlind, d.BigBlind, d.MinBuyIn, d.MaxBuyIn, d.ID))

	case server.MessageTypeRoomJoined:
		var d server.RoomJoinedData
		if !m.decode(msg, &d) {
			return
		}
		m.roomID, m.seat = d.RoomID, d.Seat
		m.cheer(fmt.Sprintf("seated at seat %d", d.Seat))
		for _, p := range d.Players {
			m.note(fmt.Sprintf("  seat %d  %-20s stack %d", p.Seat, p.Nickname, p.Stack))
		}

	case server.MessageTypeRoomLeft:
		var d server.RoomLeftData
		if !m.decode(msg, &d) {
			return
		}
		m.roomID, m.seat, m.handID = "", -1, ""
		m.wallet = d.Wallet
		m.cheer(fmt.Sprintf("left the room, wallet %d", d.Wallet))

	case server.MessageTypeRoomList:
		var d server.RoomListData
		if !m.decode(msg, &d) {
			return
		}
		m.pushAll(renderRoomList(m.styles, d.Rooms))

	case server.MessageTypeHandView:
		var v room.HandView
		if !m.decode(msg, &v) {
			return
		}
		m.handID = v.HandID
		m.pushAll(renderHandView(m.styles, &v, m.userID))

	case server.MessageTypeActionList:
		var d server.ActionListData
		if !m.decode(msg, &d) {
			return
		}
		m.pushAll(renderActionLog(m.styles, d.Actions))

	case server.MessageTypeError:
		var d server.ErrorData
		if !m.decode(msg, &d) {
			return
		}
		m.fail(d.Code + ": " + d.Message)

	case server.MessageTypeEvent:
		m.handleEvent(msg.Data)

	default:
		m.logger.Debug("unhandled frame", "type", msg.Type)
	}
}

func (m *model) decode(msg *server.Message, into any) bool {
	if err := json.Unmarshal(msg.Data, into); err != nil {
		m.logger.Warn("bad payload", "type", msg.Type, "error", err)
		m.fail(fmt.Sprintf("bad %s payload from server", msg.Type))
		return false
	}
	return true
}

func (m *model) handleEvent(data []byte) {
	var ev wireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		m.logger.Warn("bad event", "error", err)
		return
	}

	switch ev.Type {
	case events.TypeHandStarted:
		var v room.HandView
		if json.Unmarshal(ev.Payload, &v) != nil {
			return
		}
		m.handID = v.HandID
		m.push(m.styles.Header.Render(fmt.Sprintf("--- hand #%d ---", v.Number)))
		m.pushAll(renderHandView(m.styles, &v, m.userID))

	case events.TypeHoleCards:
		var p events.HoleCardsPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		m.handID = p.HandID
		m.push("your cards: " + renderCards(m.styles, p.Cards))

	case events.TypeYourTurn:
		var p struct {
			HandID   string             `json:"handId"`
			Deadline int64              `json:"deadlineUnixMs"`
			Actions  []game.ValidAction `json:"actions"`
		}
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		m.handID = p.HandID
		m.push(m.styles.Turn.Render("your turn: "+formatValidActions(p.Actions)) +
			m.styles.Info.Render(formatDeadline(p.Deadline)))

	case events.TypePlayerAction:
		var v room.HandView
		if json.Unmarshal(ev.Payload, &v) != nil {
			return
		}
		m.note(fmt.Sprintf("pot %d, %s", v.PotTotal, waitingOn(&v)))

	case events.TypeCommunityCards:
		var v room.HandView
		if json.Unmarshal(ev.Payload, &v) != nil {
			return
		}
		m.push("board: " + renderCards(m.styles, v.Community))

	case events.TypeStateChanged:
		var v room.HandView
		if json.Unmarshal(ev.Payload, &v) != nil {
			return
		}
		m.note(strings.ToLower(strings.ReplaceAll(v.State, "_", "-")) + " betting begins")

	case events.TypeShowdown:
		var v room.HandView
		if json.Unmarshal(ev.Payload, &v) != nil {
			return
		}
		m.push(m.styles.Header.Render("showdown"))
		m.pushAll(renderHandView(m.styles, &v, m.userID))

	case events.TypeHandSettled:
		var v room.HandView
		if json.Unmarshal(ev.Payload, &v) != nil {
			return
		}
		m.pushAll(renderSettlement(m.styles, &v))
		if v.HandID == m.handID {
			m.handID = ""
		}

	case events.TypePlayerJoined:
		var p events.PlayerJoinedPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		m.note(fmt.Sprintf("%s sat at seat %d with %d chips", p.Nickname, p.Seat, p.Stack))

	case events.TypePlayerLeft:
		var p events.PlayerLeftPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		m.note(fmt.Sprintf("%s left seat %d", p.Nickname, p.Seat))

	case events.TypeChat:
		var p events.ChatPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		m.push(m.styles.Chat.Render(fmt.Sprintf("[%s] %s", p.Nickname, p.Message)))

	case events.TypeEmoji:
		var p events.EmojiPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		m.push(m.styles.Chat.Render(fmt.Sprintf("%s sends %s", shortID(p.UserID), p.Emoji)))

	default:
		m.logger.Debug("unhandled event", "type", ev.Type)
	}
}

// waitingOn names the player due to act in a public view.
func waitingOn(v *room.HandView) string {
	if v.CurrentID == "" {
		return "street complete"
	}
	for _, p := range v.Players {
		if p.UserID == v.CurrentID {
			if p.Nickname != "" {
				return "waiting on " + p.Nickname
			}
			return "waiting on " + shortID(p.UserID)
		}
	}
	return "waiting"
}
