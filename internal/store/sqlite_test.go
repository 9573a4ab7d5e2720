// ABOUTME: Tests for the SQLite store against an in-memory database
// ABOUTME: Covers agent lookup, brand/release listings, and constraint handling

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_AgentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &AgentRecord{
		Username:       "alice",
		PasswordDigest: "5ebe2294ecd0e0f08eab7690d2a6ee69",
		Profile:        "Default",
		Security:       "supervisor",
		Skills:         []string{"english", "sales"},
	}
	require.NoError(t, s.CreateAgent(ctx, rec))

	got, err := s.GetAgent(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestSQLiteStore_AgentNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetAgent(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestSQLiteStore_DuplicateAgent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &AgentRecord{Username: "alice", PasswordDigest: "d0"}
	require.NoError(t, s.CreateAgent(ctx, rec))

	err := s.CreateAgent(ctx, rec)
	assert.ErrorIs(t, err, ErrAgentExists)
}

func TestSQLiteStore_NilSkillsComeBackEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAgent(ctx, &AgentRecord{Username: "bob", PasswordDigest: "d0"}))

	got, err := s.GetAgent(ctx, "bob")
	require.NoError(t, err)
	assert.NotNil(t, got.Skills)
	assert.Empty(t, got.Skills)
}

func TestSQLiteStore_CountAgents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.CountAgents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, s.CreateAgent(ctx, &AgentRecord{Username: "alice", PasswordDigest: "d0"}))
	require.NoError(t, s.CreateAgent(ctx, &AgentRecord{Username: "bob", PasswordDigest: "d1"}))

	count, err = s.CountAgents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLiteStore_BrandsOrderedByLabel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBrand(ctx, Brand{Label: "Zeta / West", Tenant: "zeta", Brand: "west"}))
	require.NoError(t, s.CreateBrand(ctx, Brand{Label: "Acme / Support", Tenant: "acme", Brand: "support"}))

	brands, err := s.ListBrands(ctx)
	require.NoError(t, err)
	require.Len(t, brands, 2)
	assert.Equal(t, "Acme / Support", brands[0].Label)
	assert.Equal(t, "Zeta / West", brands[1].Label)
}

func TestSQLiteStore_ReleaseOptionsOrderedByBias(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateReleaseOption(ctx, ReleaseOption{ID: 1, Label: "Lunch", Bias: 1}))
	require.NoError(t, s.CreateReleaseOption(ctx, ReleaseOption{ID: 2, Label: "Meeting", Bias: -1}))
	require.NoError(t, s.CreateReleaseOption(ctx, ReleaseOption{ID: 3, Label: "Break", Bias: 0}))

	opts, err := s.ListReleaseOptions(ctx)
	require.NoError(t, err)
	require.Len(t, opts, 3)
	assert.Equal(t, "Meeting", opts[0].Label)
	assert.Equal(t, "Break", opts[1].Label)
	assert.Equal(t, "Lunch", opts[2].Label)
}
