package events

import (
	"sync"

	"github.com/charmbracelet/log"
)

// DefaultBuffer is the per-subscription channel depth.
const DefaultBuffer = 64

type subKind int

const (
	kindRoom subKind = iota
	kindUser
)

// Subscription is one receiver's buffered feed. Close it when done; a
// closed subscription stops receiving and detaches from the publisher.
type Subscription struct {
	C <-chan Event

	p    *Publisher
	c    chan Event
	kind subKind
	key  string
	once sync.Once
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() { s.p.unsubscribe(s) })
}

// Publisher routes events to room and user subscriptions.
type Publisher struct {
	logger *log.Logger
	buffer int

	mu    sync.RWMutex
	rooms map[string]map[*Subscription]struct{}
	users map[string]map[*Subscription]struct{}
}

// NewPublisher creates a publisher. buffer <= 0 uses DefaultBuffer.
func NewPublisher(logger *log.Logger, buffer int) *Publisher {
	if logger == nil {
		logger = log.Default()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Publisher{
		logger: logger.WithPrefix("events"),
		buffer: buffer,
		rooms:  make(map[string]map[*Subscription]struct{}),
		users:  make(map[string]map[*Subscription]struct{}),
	}
}

// SubscribeRoom attaches a feed of everything broadcast to a room: game
// events, chat and emoji.
func (p *Publisher) SubscribeRoom(roomID string) *Subscription {
	return p.subscribe(p.rooms, kindRoom, roomID)
}

// SubscribeUser attaches a private feed: hole cards and turn prompts.
func (p *Publisher) SubscribeUser(userID string) *Subscription {
	return p.subscribe(p.users, kindUser, userID)
}

func (p *Publisher) subscribe(set map[string]map[*Subscription]struct{}, kind subKind, key string) *Subscription {
	c := make(chan Event, p.buffer)
	sub := &Subscription{C: c, p: p, c: c, kind: kind, key: key}

	p.mu.Lock()
	defer p.mu.Unlock()
	subs, ok := set[key]
	if !ok {
		subs = make(map[*Subscription]struct{})
		set[key] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

func (p *Publisher) unsubscribe(sub *Subscription) {
	p.mu.Lock()
	set := p.rooms
	if sub.kind == kindUser {
		set = p.users
	}
	if subs, ok := set[sub.key]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(set, sub.key)
		}
	}
	p.mu.Unlock()
	close(sub.c)
}

// PublishRoom broadcasts an event to every subscriber of a room.
func (p *Publisher) PublishRoom(roomID string, ev Event) {
	ev.RoomID = roomID
	p.mu.RLock()
	defer p.mu.RUnlock()
	for sub := range p.rooms[roomID] {
		p.send(sub, ev)
	}
}

// PublishUser delivers an event to every subscription of a user.
func (p *Publisher) PublishUser(userID string, ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for sub := range p.users[userID] {
		p.send(sub, ev)
	}
}

// send never blocks: a full subscriber drops the event.
func (p *Publisher) send(sub *Subscription, ev Event) {
	select {
	case sub.c <- ev:
	default:
		p.logger.Warn("subscriber full, event dropped",
			"type", ev.Type, "room", ev.RoomID, "key", sub.key)
	}
}
