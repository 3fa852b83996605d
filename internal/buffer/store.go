package buffer

import (
	"sync"
	"time"

	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/upload"
)

// Level is a notification's severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a short banner for the user.
type Notification struct {
	Level   Level         `json:"level"`
	Game    geometry.Game `json:"game,omitempty"`
	Title   string        `json:"title"`
	Message string        `json:"message"`
}

// Result is one processed upload.
type Result struct {
	Game       geometry.Game    `json:"game"`
	ScreenType string           `json:"screenType"`
	PlayData   *upload.PlayData `json:"playData,omitempty"`
	Previous   *upload.Best     `json:"previous,omitempty"`
	SavedPath  string           `json:"savedPath,omitempty"`
	CapturedAt time.Time        `json:"capturedAt"`
}

// EventKind names what an Event carries.
type EventKind string

const (
	EventNotification EventKind = "notification"
	EventResult       EventKind = "result"
)

// Event is pushed to UI subscribers.
type Event struct {
	Type EventKind     `json:"type"`
	ID   string        `json:"id"`
	Game geometry.Game `json:"game,omitempty"`
	At   time.Time     `json:"at"`
	Data any           `json:"data"`
}

// Store holds per-game results, the shared notification ring and the
// outbound event channel.
type Store struct {
	mu            sync.Mutex
	results       map[geometry.Game]*Ring[Result]
	resultCap     int
	notifications *Ring[Notification]
	eventsCh      chan Event
}

// NewStore creates a store with the given capacities.
func NewStore(resultCap, notificationCap, eventBuffer int) *Store {
	return &Store{
		results:       make(map[geometry.Game]*Ring[Result]),
		resultCap:     resultCap,
		notifications: NewRing[Notification](notificationCap),
		eventsCh:      make(chan Event, eventBuffer),
	}
}

// NewDefaultStore uses the standard capacities.
func NewDefaultStore() *Store {
	return NewStore(ResultCapacity, NotificationCapacity, DefaultEventBuffer)
}

func (s *Store) ring(game geometry.Game) *Ring[Result] {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[game]
	if !ok {
		r = NewRing[Result](s.resultCap)
		s.results[game] = r
	}
	return r
}

// AddResult stores r for its game and emits a result event.
func (s *Store) AddResult(r Result) Entry[Result] {
	e := s.ring(r.Game).Push(r)
	s.Emit(Event{Type: EventResult, ID: e.ID, Game: r.Game, At: e.CreatedAt, Data: r})
	return e
}

// Results returns a game's results, newest first.
func (s *Store) Results(game geometry.Game) []Entry[Result] {
	return s.ring(game).List()
}

// RemoveResult dismisses one result.
func (s *Store) RemoveResult(game geometry.Game, id string) bool {
	return s.ring(game).Remove(id)
}

// Notify stores n and emits a notification event.
func (s *Store) Notify(n Notification) Entry[Notification] {
	e := s.notifications.Push(n)
	s.Emit(Event{Type: EventNotification, ID: e.ID, Game: n.Game, At: e.CreatedAt, Data: n})
	return e
}

// Notifications returns live notifications, newest first.
func (s *Store) Notifications() []Entry[Notification] {
	return s.notifications.List()
}

// Dismiss removes a notification.
func (s *Store) Dismiss(id string) bool {
	return s.notifications.Remove(id)
}

// Events returns the channel of outbound events.
func (s *Store) Events() <-chan Event {
	return s.eventsCh
}

// Emit sends an event (non-blocking). Events are dropped when nobody drains
// the channel; the buffers still hold the data.
func (s *Store) Emit(event Event) {
	select {
	case s.eventsCh <- event:
	default:
	}
}
