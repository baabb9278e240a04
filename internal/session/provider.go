// Package session tracks the signed-in user reported by an identity provider.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Supported identity providers.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// Providers lists the provider names accepted by SignIn.
var Providers = []string{ProviderGoogle, ProviderGitHub}

var (
	// ErrUnsupportedProvider is returned for provider names not in Providers.
	ErrUnsupportedProvider = errors.New("unsupported identity provider")
	// ErrNoProfile is returned when sign-in has no profile to sign in with.
	ErrNoProfile = errors.New("no profile available for sign-in")
)

// ProviderUser is the identity record reported by a provider.
type ProviderUser struct {
	UID         string    `yaml:"uid"`
	Provider    string    `yaml:"provider"`
	DisplayName string    `yaml:"display_name,omitempty"`
	Email       string    `yaml:"email,omitempty"`
	PhotoURL    string    `yaml:"photo_url,omitempty"`
	SignedInAt  time.Time `yaml:"signed_in_at"`
}

// Provider is an identity provider with push notifications.
type Provider interface {
	SignIn(ctx context.Context, providerName string) (*ProviderUser, error)
	SignOut(ctx context.Context) error
	// Watch reports the current user to fn, then every change until ctx is
	// done. A nil user means signed out. Watch blocks until ctx is done.
	Watch(ctx context.Context, fn func(*ProviderUser)) error
}

// Profile is what the user supplies when signing in locally.
type Profile struct {
	Name     string
	Email    string
	PhotoURL string
}

// ProfileSource yields the profile to sign in with for a provider.
type ProfileSource func(ctx context.Context, providerName string) (Profile, error)

// StaticProfile returns a ProfileSource that always yields p.
func StaticProfile(p Profile) ProfileSource {
	return func(context.Context, string) (Profile, error) {
		if strings.TrimSpace(p.Email) == "" && strings.TrimSpace(p.Name) == "" {
			return Profile{}, ErrNoProfile
		}
		return p, nil
	}
}

type profileKey struct{}

// WithProfile attaches the profile to sign in with to ctx.
func WithProfile(ctx context.Context, p Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

// ContextProfile returns a ProfileSource that yields the profile attached by
// WithProfile, or asks next when there is none. next may be nil.
func ContextProfile(next ProfileSource) ProfileSource {
	return func(ctx context.Context, providerName string) (Profile, error) {
		if p, ok := ctx.Value(profileKey{}).(Profile); ok {
			return StaticProfile(p)(ctx, providerName)
		}
		if next == nil {
			return Profile{}, ErrNoProfile
		}
		return next(ctx, providerName)
	}
}

// NormalizeProviderName lowercases name and checks it is supported.
func NormalizeProviderName(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if !slices.Contains(Providers, n) {
		return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedProvider, name, strings.Join(Providers, ", "))
	}
	return n, nil
}
