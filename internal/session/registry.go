// ABOUTME: Concurrent session registry mapping opaque tokens to session records
// ABOUTME: Single shared mutable state across all request handlers; injected, never global

package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/openacd/cpx-gateway/internal/agent"
)

// ErrNotFound indicates no record exists for the given token.
var ErrNotFound = errors.New("session not found")

// Record is a snapshot of one session's state. A record with a non-nil
// Conn is authenticated; one without is anonymous.
type Record struct {
	Token string
	Salt  string
	Conn  *agent.Connection
}

type record struct {
	salt string
	conn *agent.Connection
}

// Registry is the token→record store shared by every request handler.
// All operations are safe under arbitrary concurrent invocation.
type Registry struct {
	mu      sync.Mutex
	records map[string]*record
	logger  *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		records: make(map[string]*record),
		logger:  logger,
	}
}

// Create allocates a fresh unique token and inserts an anonymous record.
func (r *Registry) Create() string {
	token := uuid.New().String()
	r.mu.Lock()
	r.records[token] = &record{}
	r.mu.Unlock()
	r.logger.Debug("session created", "token", token)
	return token
}

// Lookup returns a snapshot of the record for token, if any.
func (r *Registry) Lookup(token string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[token]
	if !ok {
		return Record{}, false
	}
	return Record{Token: token, Salt: rec.salt, Conn: rec.conn}, true
}

// IssueSalt replaces the record's salt, overwriting any previous one.
// Fails with ErrNotFound if the token is unknown.
func (r *Registry) IssueSalt(token, salt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[token]
	if !ok {
		return ErrNotFound
	}
	rec.salt = salt
	return nil
}

// Promote sets the connection handle on an existing record, preserving its
// salt. Fails with ErrNotFound if the token is unknown.
func (r *Registry) Promote(token string, conn *agent.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[token]
	if !ok {
		return ErrNotFound
	}
	rec.conn = conn
	return nil
}

// Reset abandons the record for token (if any) and returns a brand-new
// anonymous token. The two steps happen atomically.
func (r *Registry) Reset(token string) string {
	newToken := uuid.New().String()
	r.mu.Lock()
	delete(r.records, token)
	r.records[newToken] = &record{}
	r.mu.Unlock()
	r.logger.Debug("session reset", "old_token", token, "new_token", newToken)
	return newToken
}

// PurgeByConnection removes every record whose connection handle matches.
// Safe to run concurrently with inserts and promotions on other tokens.
// Returns the number of records removed.
func (r *Registry) PurgeByConnection(conn *agent.Connection) int {
	r.mu.Lock()
	var purged []string
	for token, rec := range r.records {
		if rec.conn == conn {
			purged = append(purged, token)
		}
	}
	for _, token := range purged {
		delete(r.records, token)
	}
	r.mu.Unlock()

	if len(purged) > 0 {
		r.logger.Debug("sessions purged for dead connection", "count", len(purged))
	}
	return len(purged)
}

// Len reports the number of live records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
