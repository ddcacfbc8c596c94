package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pandoapps/videoSoryBoard/internal/clients/imagegen"
	"github.com/pandoapps/videoSoryBoard/internal/clients/textgen"
	"github.com/pandoapps/videoSoryBoard/internal/clients/videogen"
	domain "github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
)

var ErrCredentialMissing = errors.New("credential missing")

// CredentialError carries the message shown to the user for a missing provider key.
type CredentialError struct {
	Provider domain.Provider
	Message  string
}

func (e *CredentialError) Error() string { return e.Message }
func (e *CredentialError) Unwrap() error { return ErrCredentialMissing }

func ProviderLabel(p domain.Provider) string {
	switch p {
	case domain.ProviderAnthropic:
		return "Anthropic"
	case domain.ProviderGemini:
		return "Gemini"
	case domain.ProviderNanoBanana:
		return "Nano Banana"
	case domain.ProviderKling:
		return "Kling"
	case domain.ProviderHiggsfield:
		return "Higgsfield"
	}
	return string(p)
}

// Generators bundles the three generation ports with the vault that feeds them keys.
// Every call resolves the caller's key; clients hold no per-user state.
type Generators struct {
	Text  textgen.Client
	Image imagegen.Client
	Video videogen.Client
	Vault CredentialVault
}

func (g *Generators) TextProvider() domain.Provider  { return domain.Provider(g.Text.Provider()) }
func (g *Generators) ImageProvider() domain.Provider { return domain.Provider(g.Image.Provider()) }
func (g *Generators) VideoProvider() domain.Provider { return domain.Provider(g.Video.Provider()) }

func (g *Generators) key(dbc dbctx.Context, p domain.Provider, userID uuid.UUID, suffix string) (string, error) {
	secret, ok, err := g.Vault.Get(dbc, p, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &CredentialError{Provider: p, Message: fmt.Sprintf("%s API key not configured.%s", ProviderLabel(p), suffix)}
	}
	return secret, nil
}

func (g *Generators) TextCredentials(dbc dbctx.Context, userID uuid.UUID) (textgen.Credentials, error) {
	k, err := g.key(dbc, g.TextProvider(), userID, "")
	return textgen.Credentials{APIKey: k}, err
}

func (g *Generators) ImageCredentials(dbc dbctx.Context, userID uuid.UUID) (imagegen.Credentials, error) {
	k, err := g.key(dbc, g.ImageProvider(), userID, "")
	return imagegen.Credentials{APIKey: k}, err
}

func (g *Generators) VideoCredentials(dbc dbctx.Context, userID uuid.UUID) (videogen.Credentials, error) {
	k, err := g.key(dbc, g.VideoProvider(), userID, " Add it in Settings to produce videos.")
	return videogen.Credentials{APIKey: k}, err
}
