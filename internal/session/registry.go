// Package session holds the process-wide registry of live chat sessions.
//
// A session is created when an order reaches Discord and lives until the
// process exits; there is no eviction. Each session carries two locks: one
// serializes read-modify-write operations (the poll cursor) and may be held
// across network I/O, the other only guards the stored value for the instant
// it is copied. Readers never wait for a poll in flight.
package session

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/tbourn/go-ticket-bridge/internal/domain"
)

// ErrNotFound is returned when no session exists for an id.
var ErrNotFound = errors.New("session not found")

type entry struct {
	update sync.Mutex // held for the whole of Update

	mu sync.Mutex // guards s; never held across fn
	s  domain.Session
}

func (e *entry) load() domain.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s
}

// Registry maps session ids to sessions. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	now    func() time.Time
	lastID int64
}

// NewRegistry returns an empty registry using the wall clock for ids.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// Create registers a new session and returns a copy of it.
//
// Ids are the creation time in Unix milliseconds. When two sessions are
// created within the same millisecond (or the clock steps back) the id is
// bumped past the previous one, so ids are strictly increasing and never
// reused within the process.
func (r *Registry) Create(channelID, webhookURL, customerName string) domain.Session {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	id := now.UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id

	s := domain.Session{
		ID:           strconv.FormatInt(id, 10),
		ChannelID:    channelID,
		WebhookURL:   webhookURL,
		CustomerName: customerName,
		CreatedAt:    now.UTC(),
	}
	r.sessions[s.ID] = &entry{s: s}
	return s
}

// Get returns a snapshot of the session with the given id. It does not wait
// for an Update in progress; the snapshot holds the last committed cursor.
func (r *Registry) Get(id string) (domain.Session, bool) {
	e := r.lookup(id)
	if e == nil {
		return domain.Session{}, false
	}
	return e.load(), true
}

// Update runs fn with exclusive access to the session's mutable state.
// Changes fn makes are committed only when fn returns nil, and only
// LastMessageID can change; the rest is fixed at creation. Concurrent Update
// calls on the same id run one after another; fn may block (e.g. on network
// I/O) without blocking Get.
func (r *Registry) Update(id string, fn func(s *domain.Session) error) error {
	e := r.lookup(id)
	if e == nil {
		return ErrNotFound
	}
	e.update.Lock()
	defer e.update.Unlock()

	work := e.load()
	if err := fn(&work); err != nil {
		return err
	}

	e.mu.Lock()
	e.s.LastMessageID = work.LastMessageID
	e.mu.Unlock()
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) lookup(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}
