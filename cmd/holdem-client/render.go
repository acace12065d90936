package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cardroom/holdemd/internal/game"
	"github.com/cardroom/holdemd/internal/room"
	"github.com/cardroom/holdemd/internal/server"
)

// renderCards styles two-character card codes, hearts and diamonds in red.
func renderCards(st *styles, codes []string) string {
	if len(codes) == 0 {
		return st.Info.Render("--")
	}
	parts := make([]string, len(codes))
	for i, code := range codes {
		if strings.HasSuffix(code, "h") || strings.HasSuffix(code, "d") {
			parts[i] = st.RedCard.Render(code)
		} else {
			parts[i] = st.BlackCard.Render(code)
		}
	}
	return strings.Join(parts, " ")
}

// renderHandView draws the table as log lines: a header, the board, then
// one line per seat in seat order.
func renderHandView(st *styles, v *room.HandView, viewerID string) []string {
	lines := []string{
		st.Header.Render(fmt.Sprintf("hand #%d", v.Number)) +
			st.Info.Render(fmt.Sprintf("  %s  pot %d  blinds %d/%d", v.State, v.PotTotal, v.SmallBlind, v.BigBlind)),
		"board: " + renderCards(st, v.Community),
	}
	players := append([]room.PlayerView(nil), v.Players...)
	sort.Slice(players, func(i, j int) bool { return players[i].Seat < players[j].Seat })
	for _, p := range players {
		lines = append(lines, renderPlayer(st, v, p, viewerID))
	}
	return lines
}

func renderPlayer(st *styles, v *room.HandView, p room.PlayerView, viewerID string) string {
	name := p.Nickname
	if name == "" {
		name = shortID(p.UserID)
	}
	if p.UserID == viewerID {
		name += " (you)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  seat %d  %-20s stack %-7d", p.Seat, name, p.Stack)
	if p.BetTotal > 0 {
		fmt.Fprintf(&b, " bet %-6d", p.BetTotal)
	}
	if p.Seat == v.DealerSeat {
		b.WriteString(" (button)")
	}
	if p.Status != game.StatusActive.String() {
		b.WriteString(" " + st.Info.Render(strings.ToLower(p.Status)))
	}
	if len(p.HoleCards) > 0 {
		b.WriteString("  " + renderCards(st, p.HoleCards))
	}
	if p.BestHand != "" {
		b.WriteString("  " + st.Info.Render(p.BestHand))
	}
	if p.Won > 0 {
		b.WriteString("  " + st.Success.Render(fmt.Sprintf("+%d", p.Won)))
	}
	if p.UserID == v.CurrentID {
		b.WriteString("  " + st.Turn.Render("<- to act"))
	}
	return b.String()
}

// renderSettlement lists the winners once a hand is over.
func renderSettlement(st *styles, v *room.HandView) []string {
	var lines []string
	for _, p := range v.Players {
		if p.Won <= 0 {
			continue
		}
		name := p.Nickname
		if name == "" {
			name = shortID(p.UserID)
		}
		line := fmt.Sprintf("%s wins %d", name, p.Won)
		if p.BestHand != "" {
			line += " with " + p.BestHand
		}
		lines = append(lines, st.Success.Render(line))
	}
	if len(lines) == 0 {
		lines = append(lines, st.Info.Render("hand over"))
	}
	return lines
}

func renderRoomList(st *styles, rooms []server.RoomInfo) []string {
	if len(rooms) == 0 {
		return []string{st.Info.Render("no open rooms, create one with: create <small-blind> [name]")}
	}
	lines := []string{st.Header.Render("rooms")}
	for _, r := range rooms {
		lines = append(lines, fmt.Sprintf("  %-24s %s  seats %d/%d  blinds %d/%d  buy-in %d..%d",
			r.Name, r.ID, r.Seated, r.MaxSeats, r.SmallBlind, r.BigBlind, r.MinBuyIn, r.MaxBuyIn))
	}
	lines = append(lines, st.Info.Render("join with: join <room-id|invite-code> <buy-in> [seat]"))
	return lines
}

func renderActionLog(st *styles, actions []room.ActionView) []string {
	lines := []string{st.Header.Render("hand log")}
	for _, a := range actions {
		who := shortID(a.UserID)
		if who == "" {
			who = "dealer"
		}
		lines = append(lines, fmt.Sprintf("  %3d  %-12s %-8d %-10s %s",
			a.Seq, a.Action, a.Amount, a.State, who))
	}
	return lines
}

// formatValidActions renders a turn prompt such as
// "fold | call 10 | raise 20..990 | allin 990".
func formatValidActions(actions []game.ValidAction) string {
	parts := make([]string, 0, len(actions))
	for _, va := range actions {
		switch va.Type {
		case game.ActionFold:
			parts = append(parts, "fold")
		case game.ActionCheck:
			parts = append(parts, "check")
		case game.ActionCall:
			parts = append(parts, fmt.Sprintf("call %d", va.Min))
		case game.ActionRaise:
			parts = append(parts, fmt.Sprintf("raise %d..%d", va.Min, va.Max))
		case game.ActionAllIn:
			parts = append(parts, fmt.Sprintf("allin %d", va.Min))
		}
	}
	return strings.Join(parts, " | ")
}

func formatDeadline(unixMs int64) string {
	left := time.Until(time.UnixMilli(unixMs)).Round(time.Second)
	if left <= 0 {
		return ""
	}
	return fmt.Sprintf(" (%s to act)", left)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
