// ABOUTME: Store interface and data types for gateway persistence
// ABOUTME: Holds agent credential records, brand list, and release options

package store

import (
	"context"
	"errors"
)

// ErrAgentNotFound indicates no agent record exists for the given username.
var ErrAgentNotFound = errors.New("agent not found")

// ErrAgentExists indicates an agent record with the same username already exists.
var ErrAgentExists = errors.New("agent already exists")

// AgentRecord is a provisioned agent account.
// PasswordDigest is the lowercase hex MD5 digest of the agent's password,
// which is what the salted login exchange requires the server to hold.
type AgentRecord struct {
	Username       string
	PasswordDigest string
	Profile        string
	Security       string // "agent", "supervisor", or "admin"
	Skills         []string
}

// Brand is one entry in the brand list served to agent clients.
type Brand struct {
	Label  string
	Tenant string
	Brand  string
}

// ReleaseOption is a named reason an agent can select when going released.
type ReleaseOption struct {
	ID    int
	Label string
	Bias  int
}

// Store provides access to gateway persistence.
type Store interface {
	// Agents
	GetAgent(ctx context.Context, username string) (*AgentRecord, error)
	CreateAgent(ctx context.Context, rec *AgentRecord) error
	CountAgents(ctx context.Context) (int, error)

	// Brands
	ListBrands(ctx context.Context) ([]Brand, error)
	CreateBrand(ctx context.Context, b Brand) error

	// Release options
	ListReleaseOptions(ctx context.Context) ([]ReleaseOption, error)
	CreateReleaseOption(ctx context.Context, opt ReleaseOption) error

	Close() error
}
