// ABOUTME: Manages live agent connection workers, handles provisioning and teardown.
// ABOUTME: Acts as the connection factory consumed by the login handshake.

package agent

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/openacd/cpx-gateway/internal/auth"
)

// ErrDuplicateLogin indicates an agent with the same login already has a
// live connection. The handshake reports this as a refused connection.
var ErrDuplicateLogin = errors.New("agent already logged in")

// Manager owns all live agent connection workers.
type Manager struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	logger *slog.Logger
}

// NewManager creates a new Manager instance.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		conns:  make(map[string]*Connection),
		logger: logger,
	}
}

// Start provisions a new worker seeded with the agent's identity and claims
// and begins its run loop. Returns ErrDuplicateLogin if a worker for the
// same login is already live.
func (m *Manager) Start(login string, claims *auth.Claims) (*Connection, error) {
	m.mu.Lock()
	if _, exists := m.conns[login]; exists {
		m.mu.Unlock()
		return nil, ErrDuplicateLogin
	}

	conn := newConnection(login, claims, m, m.logger.With("login", login))
	m.conns[login] = conn
	total := len(m.conns)
	m.mu.Unlock()

	go conn.run()
	go m.reap(login, conn)

	m.logger.Info("agent connection started",
		"login", login,
		"profile", claims.Profile,
		"security", claims.Security.String(),
		"total_agents", total,
	)
	return conn, nil
}

// reap removes the connection from the table once its worker terminates.
func (m *Manager) reap(login string, conn *Connection) {
	<-conn.Done()

	m.mu.Lock()
	if cur, ok := m.conns[login]; ok && cur == conn {
		delete(m.conns, login)
	}
	total := len(m.conns)
	m.mu.Unlock()

	m.logger.Info("agent connection ended",
		"login", login,
		"reason", conn.ExitReason(),
		"total_agents", total,
	)
}

// Get retrieves a live connection by login.
func (m *Manager) Get(login string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[login]
	return conn, ok
}

// AgentStatus is a point-in-time view of one live agent, as reported to
// supervisor status requests.
type AgentStatus struct {
	Login     string `json:"login"`
	Profile   string `json:"profile"`
	State     string `json:"state"`
	StateData string `json:"statedata"`
}

// Statuses returns a snapshot of every live agent's state.
func (m *Manager) Statuses() []AgentStatus {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	statuses := make([]AgentStatus, 0, len(conns))
	for _, c := range conns {
		login, state, stateData := c.DumpState()
		statuses = append(statuses, AgentStatus{
			Login:     login,
			Profile:   c.Profile,
			State:     state,
			StateData: stateData,
		})
	}
	return statuses
}

// Len reports the number of live connections.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Shutdown stops every live worker with a shutdown exit reason.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		c.Stop(ExitShutdown)
	}
}
