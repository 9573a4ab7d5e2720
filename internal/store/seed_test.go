// ABOUTME: Tests for TOML seed fixture loading and first-run provisioning
// ABOUTME: Verifies digest handling, defaults, and idempotent re-seeding

package store

import (
	"context"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedFixture = `
[[agents]]
username = "alice"
password = "secret"
profile = "Default"
security = "agent"
skills = ["english", "sales"]

[[agents]]
username = "boss"
password_digest = "5ebe2294ecd0e0f08eab7690d2a6ee69"
security = "supervisor"

[[brands]]
label = "Acme / Support"
tenant = "acme"
brand = "support"

[[release_options]]
id = 1
label = "Lunch"
bias = 0

[[release_options]]
id = 2
label = "Meeting"
bias = -1
`

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSeed(t *testing.T) {
	path := writeSeedFile(t, seedFixture)

	seed, err := LoadSeed(path)
	require.NoError(t, err)

	require.Len(t, seed.Agents, 2)
	assert.Equal(t, "alice", seed.Agents[0].Username)
	assert.Equal(t, "secret", seed.Agents[0].Password)
	assert.Equal(t, []string{"english", "sales"}, seed.Agents[0].Skills)
	assert.Equal(t, "5ebe2294ecd0e0f08eab7690d2a6ee69", seed.Agents[1].PasswordDigest)

	require.Len(t, seed.Brands, 1)
	assert.Equal(t, "acme", seed.Brands[0].Tenant)

	require.Len(t, seed.ReleaseOptions, 2)
	assert.Equal(t, -1, seed.ReleaseOptions[1].Bias)
}

func TestLoadSeed_Malformed(t *testing.T) {
	path := writeSeedFile(t, "[[agents]\nusername = broken")

	_, err := LoadSeed(path)
	assert.Error(t, err)
}

func TestSeed_ProvisionsEmptyStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed, err := LoadSeed(writeSeedFile(t, seedFixture))
	require.NoError(t, err)
	require.NoError(t, s.Seed(ctx, seed))

	alice, err := s.GetAgent(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%x", md5.Sum([]byte("secret"))), alice.PasswordDigest,
		"plaintext seed passwords are digested at load")
	assert.Equal(t, "Default", alice.Profile)

	boss, err := s.GetAgent(ctx, "boss")
	require.NoError(t, err)
	assert.Equal(t, "5ebe2294ecd0e0f08eab7690d2a6ee69", boss.PasswordDigest)
	assert.Equal(t, "supervisor", boss.Security)
	assert.Equal(t, "Default", boss.Profile, "missing profile falls back to Default")

	brands, err := s.ListBrands(ctx)
	require.NoError(t, err)
	assert.Len(t, brands, 1)

	opts, err := s.ListReleaseOptions(ctx)
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}

func TestSeed_SkipsProvisionedStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAgent(ctx, &AgentRecord{Username: "existing", PasswordDigest: "d0"}))

	seed, err := LoadSeed(writeSeedFile(t, seedFixture))
	require.NoError(t, err)
	require.NoError(t, s.Seed(ctx, seed))

	_, err = s.GetAgent(ctx, "alice")
	assert.ErrorIs(t, err, ErrAgentNotFound, "seed must not run against a provisioned store")

	count, err := s.CountAgents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSeed_Rerun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed, err := LoadSeed(writeSeedFile(t, seedFixture))
	require.NoError(t, err)

	require.NoError(t, s.Seed(ctx, seed))
	require.NoError(t, s.Seed(ctx, seed))

	count, err := s.CountAgents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
