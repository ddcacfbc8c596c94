package services

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandoapps/videoSoryBoard/internal/clients/redis"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos/testutil"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/secretbox"
)

func newTestVault(t *testing.T) (CredentialVault, *miniredis.Miniredis, dbctx.Context) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	box, err := secretbox.New("test-passphrase")
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	v := NewCredentialVault(log, repos.NewApiCredentialRepo(db, log), box, redis.NewCache(rdb, "test:"))
	return v, mr, dbctx.Context{Ctx: context.Background()}
}

func TestCredentialVaultSetGet(t *testing.T) {
	v, _, dbc := newTestVault(t)
	user := uuid.New()

	_, ok, err := v.Get(dbc, domain.ProviderKling, user)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v.Set(dbc, domain.ProviderKling, user, " ak:sk "))
	got, ok, err := v.Get(dbc, domain.ProviderKling, user)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ak:sk", got)

	other, ok, err := v.Get(dbc, domain.ProviderKling, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, other)
}

func TestCredentialVaultCachesSealedValueOnly(t *testing.T) {
	v, mr, dbc := newTestVault(t)
	user := uuid.New()
	require.NoError(t, v.Set(dbc, domain.ProviderAnthropic, user, "sk-ant-123"))
	_, _, err := v.Get(dbc, domain.ProviderAnthropic, user)
	require.NoError(t, err)

	key := "test:" + cacheKey(user, domain.ProviderAnthropic)
	cached, err := mr.Get(key)
	require.NoError(t, err)
	assert.NotEmpty(t, cached)
	assert.NotContains(t, cached, "sk-ant-123")
}

func TestCredentialVaultSetForgetsCache(t *testing.T) {
	v, _, dbc := newTestVault(t)
	user := uuid.New()
	require.NoError(t, v.Set(dbc, domain.ProviderAnthropic, user, "first"))
	_, _, _ = v.Get(dbc, domain.ProviderAnthropic, user)

	require.NoError(t, v.Set(dbc, domain.ProviderAnthropic, user, "second"))
	got, _, err := v.Get(dbc, domain.ProviderAnthropic, user)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	require.NoError(t, v.Remove(dbc, domain.ProviderAnthropic, user))
	assert.False(t, v.Has(dbc, domain.ProviderAnthropic, user))
}

func TestCredentialVaultStatusAndAllConfigured(t *testing.T) {
	v, _, dbc := newTestVault(t)
	user := uuid.New()
	require.NoError(t, v.Set(dbc, domain.ProviderAnthropic, user, "a"))
	require.NoError(t, v.Set(dbc, domain.ProviderNanoBanana, user, "b"))
	assert.False(t, v.AllConfigured(dbc, user))

	require.NoError(t, v.Set(dbc, domain.ProviderKling, user, "ak:sk"))
	assert.True(t, v.AllConfigured(dbc, user))

	status, err := v.Status(dbc, user)
	require.NoError(t, err)
	require.Len(t, status, len(domain.Providers))
	configured := map[domain.Provider]bool{}
	for _, s := range status {
		configured[s.Provider] = s.Configured
	}
	assert.True(t, configured[domain.ProviderKling])
	assert.False(t, configured[domain.ProviderHiggsfield])
}

func TestCredentialVaultRejectsEmptySecret(t *testing.T) {
	v, _, dbc := newTestVault(t)
	assert.Error(t, v.Set(dbc, domain.ProviderKling, uuid.New(), "   "))
}
