package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pandoapps/videoSoryBoard/internal/clients/redis"
	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
	"github.com/pandoapps/videoSoryBoard/internal/platform/secretbox"
)

const credentialCacheTTL = time.Hour

// CredentialStatus is the settings-page view of one provider key. The secret never leaves the vault.
type CredentialStatus struct {
	Provider   domain.Provider `json:"provider"`
	Configured bool            `json:"configured"`
	IsActive   bool            `json:"is_active"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
}

type CredentialVault interface {
	Get(dbc dbctx.Context, provider domain.Provider, userID uuid.UUID) (string, bool, error)
	Set(dbc dbctx.Context, provider domain.Provider, userID uuid.UUID, secret string) error
	Remove(dbc dbctx.Context, provider domain.Provider, userID uuid.UUID) error
	Has(dbc dbctx.Context, provider domain.Provider, userID uuid.UUID) bool
	Status(dbc dbctx.Context, userID uuid.UUID) ([]CredentialStatus, error)
	AllConfigured(dbc dbctx.Context, userID uuid.UUID) bool
}

type credentialVault struct {
	log   *logger.Logger
	repo  repos.ApiCredentialRepo
	box   *secretbox.Box
	cache redis.Cache
}

// NewCredentialVault caches sealed secrets only; plaintext is opened per read.
func NewCredentialVault(baseLog *logger.Logger, repo repos.ApiCredentialRepo, box *secretbox.Box, cache redis.Cache) CredentialVault {
	if cache == nil {
		cache = redis.NewMemoryCache()
	}
	return &credentialVault{
		log:   baseLog.With("service", "CredentialVault"),
		repo:  repo,
		box:   box,
		cache: cache,
	}
}

func cacheKey(userID uuid.UUID, provider domain.Provider) string {
	return fmt.Sprintf("api_key.%s.%s", userID, provider)
}

func (v *credentialVault) Get(dbc dbctx.Context, provider domain.Provider, userID uuid.UUID) (string, bool, error) {
	key := cacheKey(userID, provider)
	sealed, hit, err := v.cache.Get(dbc.Context(), key)
	if err != nil {
		v.log.Warn("credential cache read failed", "provider", provider, "error", err)
		hit = false
	}
	if !hit {
		row, err := v.repo.Get(dbc, userID, provider)
		if err != nil {
			return "", false, err
		}
		if row == nil || !row.IsActive {
			return "", false, nil
		}
		sealed = row.EncryptedSecret
		if err := v.cache.Set(dbc.Context(), key, sealed, credentialCacheTTL); err != nil {
			v.log.Warn("credential cache write failed", "provider", provider, "error", err)
		}
	}
	plain, err := v.box.Open(sealed)
	if err != nil {
		return "", false, fmt.Errorf("open %s credential: %w", provider, err)
	}
	return plain, plain != "", nil
}

func (v *credentialVault) Set(dbc dbctx.Context, provider domain.Provider, userID uuid.UUID, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("empty secret")
	}
	sealed, err := v.box.Seal(secret)
	if err != nil {
		return err
	}
	if err := v.repo.Upsert(dbc, userID, provider, sealed); err != nil {
		return err
	}
	_ = v.cache.Delete(dbc.Context(), cacheKey(userID, provider))
	v.log.Info("credential stored", "provider", provider, "user_id", userID)
	return nil
}

func (v *credentialVault) Remove(dbc dbctx.Context, provider domain.Provider, userID uuid.UUID) error {
	if err := v.repo.Delete(dbc, userID, provider); err != nil {
		return err
	}
	_ = v.cache.Delete(dbc.Context(), cacheKey(userID, provider))
	return nil
}

func (v *credentialVault) Has(dbc dbctx.Context, provider domain.Provider, userID uuid.UUID) bool {
	_, ok, err := v.Get(dbc, provider, userID)
	return err == nil && ok
}

func (v *credentialVault) Status(dbc dbctx.Context, userID uuid.UUID) ([]CredentialStatus, error) {
	rows, err := v.repo.ListByUser(dbc, userID)
	if err != nil {
		return nil, err
	}
	byProvider := make(map[domain.Provider]CredentialStatus, len(rows))
	for _, r := range rows {
		updated := r.UpdatedAt
		byProvider[r.Provider] = CredentialStatus{Provider: r.Provider, Configured: true, IsActive: r.IsActive, UpdatedAt: &updated}
	}
	out := make([]CredentialStatus, 0, len(domain.Providers))
	for _, p := range domain.Providers {
		st, ok := byProvider[p]
		if !ok {
			st = CredentialStatus{Provider: p}
		}
		out = append(out, st)
	}
	return out, nil
}

// AllConfigured reports whether the default text, image and video providers all have keys.
func (v *credentialVault) AllConfigured(dbc dbctx.Context, userID uuid.UUID) bool {
	return v.Has(dbc, domain.ProviderAnthropic, userID) &&
		v.Has(dbc, domain.ProviderNanoBanana, userID) &&
		v.Has(dbc, domain.ProviderKling, userID)
}
