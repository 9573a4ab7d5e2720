// ABOUTME: TOML seed fixture loading for first-run provisioning
// ABOUTME: Populates agents, brands, and release options when the store is empty

package store

import (
	"context"
	"crypto/md5"
	"fmt"

	"github.com/BurntSushi/toml"
)

// SeedFile is the decoded form of a seed fixture file.
type SeedFile struct {
	Agents         []SeedAgent         `toml:"agents"`
	Brands         []SeedBrand         `toml:"brands"`
	ReleaseOptions []SeedReleaseOption `toml:"release_options"`
}

// SeedAgent describes one agent account in the seed file.
// Either Password (plaintext, digested at load) or PasswordDigest
// (precomputed hex MD5) must be set; PasswordDigest wins when both are.
type SeedAgent struct {
	Username       string   `toml:"username"`
	Password       string   `toml:"password"`
	PasswordDigest string   `toml:"password_digest"`
	Profile        string   `toml:"profile"`
	Security       string   `toml:"security"`
	Skills         []string `toml:"skills"`
}

// SeedBrand describes one brand entry in the seed file.
type SeedBrand struct {
	Label  string `toml:"label"`
	Tenant string `toml:"tenant"`
	Brand  string `toml:"brand"`
}

// SeedReleaseOption describes one release option in the seed file.
type SeedReleaseOption struct {
	ID    int    `toml:"id"`
	Label string `toml:"label"`
	Bias  int    `toml:"bias"`
}

// LoadSeed reads and decodes a TOML seed file from disk.
func LoadSeed(path string) (*SeedFile, error) {
	var seed SeedFile
	if _, err := toml.DecodeFile(path, &seed); err != nil {
		return nil, fmt.Errorf("decoding seed file %s: %w", path, err)
	}
	return &seed, nil
}

// Seed populates the store from a seed file. It is idempotent: if any agent
// records already exist, the whole seed is skipped.
func (s *SQLiteStore) Seed(ctx context.Context, seed *SeedFile) error {
	count, err := s.CountAgents(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		s.logger.Debug("store already provisioned, skipping seed", "agents", count)
		return nil
	}

	for _, a := range seed.Agents {
		digest := a.PasswordDigest
		if digest == "" {
			digest = fmt.Sprintf("%x", md5.Sum([]byte(a.Password)))
		}
		security := a.Security
		if security == "" {
			security = "agent"
		}
		profile := a.Profile
		if profile == "" {
			profile = "Default"
		}
		rec := &AgentRecord{
			Username:       a.Username,
			PasswordDigest: digest,
			Profile:        profile,
			Security:       security,
			Skills:         a.Skills,
		}
		if err := s.CreateAgent(ctx, rec); err != nil {
			return fmt.Errorf("seeding agent %q: %w", a.Username, err)
		}
	}

	for _, b := range seed.Brands {
		if err := s.CreateBrand(ctx, Brand{Label: b.Label, Tenant: b.Tenant, Brand: b.Brand}); err != nil {
			return fmt.Errorf("seeding brand %q: %w", b.Label, err)
		}
	}

	for _, o := range seed.ReleaseOptions {
		if err := s.CreateReleaseOption(ctx, ReleaseOption{ID: o.ID, Label: o.Label, Bias: o.Bias}); err != nil {
			return fmt.Errorf("seeding release option %q: %w", o.Label, err)
		}
	}

	s.logger.Info("store seeded",
		"agents", len(seed.Agents),
		"brands", len(seed.Brands),
		"release_options", len(seed.ReleaseOptions),
	)
	return nil
}
