// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides agent/brand/release-option persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		username   TEXT PRIMARY KEY,
		pwd_digest TEXT NOT NULL,
		profile    TEXT NOT NULL DEFAULT 'Default',
		security   TEXT NOT NULL DEFAULT 'agent',
		skills     TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS brands (
		tenant TEXT NOT NULL,
		brand  TEXT NOT NULL,
		label  TEXT NOT NULL,
		PRIMARY KEY (tenant, brand)
	);

	CREATE TABLE IF NOT EXISTS release_options (
		id    INTEGER PRIMARY KEY,
		label TEXT NOT NULL,
		bias  INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// GetAgent returns the agent record for the given username.
// Returns ErrAgentNotFound if no record exists.
func (s *SQLiteStore) GetAgent(ctx context.Context, username string) (*AgentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT username, pwd_digest, profile, security, skills FROM agents WHERE username = ?`,
		username,
	)

	var rec AgentRecord
	var skillsJSON string
	err := row.Scan(&rec.Username, &rec.PasswordDigest, &rec.Profile, &rec.Security, &skillsJSON)
	if err == sql.ErrNoRows {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying agent: %w", err)
	}

	if err := json.Unmarshal([]byte(skillsJSON), &rec.Skills); err != nil {
		return nil, fmt.Errorf("decoding skills for %q: %w", username, err)
	}
	return &rec, nil
}

// CreateAgent inserts a new agent record.
// Returns ErrAgentExists if the username is already taken.
func (s *SQLiteStore) CreateAgent(ctx context.Context, rec *AgentRecord) error {
	skills := rec.Skills
	if skills == nil {
		skills = []string{}
	}
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return fmt.Errorf("encoding skills: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agents (username, pwd_digest, profile, security, skills) VALUES (?, ?, ?, ?, ?)`,
		rec.Username, rec.PasswordDigest, rec.Profile, rec.Security, string(skillsJSON),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAgentExists
		}
		return fmt.Errorf("inserting agent: %w", err)
	}
	return nil
}

// CountAgents returns the number of provisioned agent records.
func (s *SQLiteStore) CountAgents(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting agents: %w", err)
	}
	return count, nil
}

// ListBrands returns all brands ordered by label.
func (s *SQLiteStore) ListBrands(ctx context.Context) ([]Brand, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, tenant, brand FROM brands ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("querying brands: %w", err)
	}
	defer rows.Close()

	var brands []Brand
	for rows.Next() {
		var b Brand
		if err := rows.Scan(&b.Label, &b.Tenant, &b.Brand); err != nil {
			return nil, fmt.Errorf("scanning brand: %w", err)
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// CreateBrand inserts a brand entry.
func (s *SQLiteStore) CreateBrand(ctx context.Context, b Brand) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO brands (tenant, brand, label) VALUES (?, ?, ?)`,
		b.Tenant, b.Brand, b.Label,
	)
	if err != nil {
		return fmt.Errorf("inserting brand: %w", err)
	}
	return nil
}

// ListReleaseOptions returns all release options ordered by bias then id.
func (s *SQLiteStore) ListReleaseOptions(ctx context.Context) ([]ReleaseOption, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, bias FROM release_options ORDER BY bias, id`)
	if err != nil {
		return nil, fmt.Errorf("querying release options: %w", err)
	}
	defer rows.Close()

	var opts []ReleaseOption
	for rows.Next() {
		var o ReleaseOption
		if err := rows.Scan(&o.ID, &o.Label, &o.Bias); err != nil {
			return nil, fmt.Errorf("scanning release option: %w", err)
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

// CreateReleaseOption inserts a release option.
func (s *SQLiteStore) CreateReleaseOption(ctx context.Context, opt ReleaseOption) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO release_options (id, label, bias) VALUES (?, ?, ?)`,
		opt.ID, opt.Label, opt.Bias,
	)
	if err != nil {
		return fmt.Errorf("inserting release option: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint failures in the error string;
	// there is no exported error type to match against.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
