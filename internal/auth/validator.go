// ABOUTME: Credential validation for the salted-digest login exchange
// ABOUTME: Verifies client-supplied digests against stored records and returns claims

package auth

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openacd/cpx-gateway/internal/store"
)

// ErrAuthFailed indicates the username/digest pair did not validate.
// Unknown users and wrong passwords are deliberately indistinguishable.
var ErrAuthFailed = errors.New("authentication failed")

// Level is an agent's security level.
type Level int

const (
	LevelAgent Level = iota
	LevelSupervisor
	LevelAdmin
)

func (l Level) String() string {
	switch l {
	case LevelAgent:
		return "agent"
	case LevelSupervisor:
		return "supervisor"
	case LevelAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseLevel parses a stored security level string. Unrecognized values
// fall back to LevelAgent rather than failing a login.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "supervisor":
		return LevelSupervisor
	case "admin":
		return LevelAdmin
	default:
		return LevelAgent
	}
}

// Claims is the validator's output on a successful authentication.
type Claims struct {
	Skills   []string
	Security Level
	Profile  string
}

// Validator verifies a salted credential and returns authorization claims.
type Validator interface {
	// Auth checks that saltedDigest equals hex(md5(salt + storedDigest)) for
	// the named user. Returns ErrAuthFailed on any mismatch.
	Auth(ctx context.Context, username, saltedDigest, salt string) (*Claims, error)
}

// AgentDirectory is the subset of the store the validator needs.
type AgentDirectory interface {
	GetAgent(ctx context.Context, username string) (*store.AgentRecord, error)
}

// StoreValidator implements Validator against an agent directory.
type StoreValidator struct {
	agents AgentDirectory
	logger *slog.Logger
}

// NewStoreValidator creates a validator backed by the given directory.
func NewStoreValidator(agents AgentDirectory, logger *slog.Logger) *StoreValidator {
	return &StoreValidator{
		agents: agents,
		logger: logger,
	}
}

// Auth implements Validator.
func (v *StoreValidator) Auth(ctx context.Context, username, saltedDigest, salt string) (*Claims, error) {
	rec, err := v.agents.GetAgent(ctx, username)
	if errors.Is(err, store.ErrAgentNotFound) {
		v.logger.Debug("login attempt for unknown agent", "username", username)
		return nil, ErrAuthFailed
	}
	if err != nil {
		return nil, fmt.Errorf("looking up agent: %w", err)
	}

	expected := SaltedDigest(salt, rec.PasswordDigest)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(saltedDigest))) != 1 {
		v.logger.Debug("digest mismatch", "username", username)
		return nil, ErrAuthFailed
	}

	return &Claims{
		Skills:   rec.Skills,
		Security: ParseLevel(rec.Security),
		Profile:  rec.Profile,
	}, nil
}

// SaltedDigest computes hex(md5(salt + passwordDigest)), the value a client
// must present for a login against the given salt.
func SaltedDigest(salt, passwordDigest string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(salt+passwordDigest)))
}
