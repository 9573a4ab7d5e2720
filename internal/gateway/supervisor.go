// ABOUTME: Lifecycle supervisor watching agent connection termination
// ABOUTME: Reconciles the session registry when a worker exits cleanly

package gateway

import (
	"log/slog"
	"sync"

	"github.com/openacd/cpx-gateway/internal/agent"
	"github.com/openacd/cpx-gateway/internal/session"
)

// Supervisor watches every agent connection it has been linked to and drops
// registry records pointing at cleanly-exited workers. Abnormal exits are
// only logged; their records are discovered stale on next use.
type Supervisor struct {
	registry *session.Registry
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewSupervisor creates a Supervisor over the given registry.
func NewSupervisor(registry *session.Registry, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		registry: registry,
		logger:   logger,
	}
}

// Link registers a connection for lifetime watching. Called by the login
// handshake once a worker has been provisioned.
func (s *Supervisor) Link(conn *agent.Connection) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-conn.Done()

		reason := conn.ExitReason()
		if reason == agent.ExitNormal {
			purged := s.registry.PurgeByConnection(conn)
			s.logger.Info("agent connection exited cleanly",
				"login", conn.Login,
				"sessions_purged", purged,
			)
			return
		}

		s.logger.Warn("agent connection exited abnormally, leaving sessions for lazy cleanup",
			"login", conn.Login,
			"reason", reason,
		)
	}()
}

// Wait blocks until every linked watcher has finished. Used during shutdown
// after the manager has stopped all workers.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
