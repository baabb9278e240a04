package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// FileProvider keeps the signed-in profile in a YAML file so every aletheia
// process on the machine shares one session. Changes made by other processes
// are pushed to watchers through fsnotify.
type FileProvider struct {
	path    string
	profile ProfileSource
	now     func() time.Time
}

// NewFileProvider creates a provider backed by the session file at path.
func NewFileProvider(path string, profile ProfileSource) *FileProvider {
	return &FileProvider{path: filepath.Clean(path), profile: profile, now: time.Now}
}

// Path returns the session file location.
func (p *FileProvider) Path() string {
	return p.path
}

// SignIn resolves a profile for providerName and persists it.
func (p *FileProvider) SignIn(ctx context.Context, providerName string) (*ProviderUser, error) {
	name, err := NormalizeProviderName(providerName)
	if err != nil {
		return nil, err
	}
	if p.profile == nil {
		return nil, ErrNoProfile
	}
	profile, err := p.profile(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("resolve %s profile: %w", name, err)
	}

	identity := strings.ToLower(strings.TrimSpace(profile.Email))
	if identity == "" {
		identity = strings.TrimSpace(profile.Name)
	}
	user := &ProviderUser{
		UID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte(name+":"+identity)).String(),
		Provider:    name,
		DisplayName: strings.TrimSpace(profile.Name),
		Email:       strings.TrimSpace(profile.Email),
		PhotoURL:    strings.TrimSpace(profile.PhotoURL),
		SignedInAt:  p.now().UTC().Truncate(time.Second),
	}
	if err := p.write(user); err != nil {
		return nil, err
	}
	log.Debug().Str("provider", name).Str("uid", user.UID).Msg("session: signed in")
	return user, nil
}

// SignOut removes the session file. Signing out twice is not an error.
func (p *FileProvider) SignOut(context.Context) error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Load reads the session file. It returns nil when nobody is signed in.
func (p *FileProvider) Load() (*ProviderUser, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var user ProviderUser
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", p.path, err)
	}
	if user.UID == "" {
		return nil, nil
	}
	return &user, nil
}

// Watch implements Provider.
func (p *FileProvider) Watch(ctx context.Context, fn func(*ProviderUser)) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	p.notify(fn)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			p.notify(fn)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("path", p.path).Msg("session: watch error")
		}
	}
}

func (p *FileProvider) notify(fn func(*ProviderUser)) {
	user, err := p.Load()
	if err != nil {
		log.Warn().Err(err).Msg("session: unreadable session file, treating as signed out")
		user = nil
	}
	fn(user)
}

// write replaces the session file atomically so watchers never see a
// partially written profile.
func (p *FileProvider) write(user *ProviderUser) error {
	data, err := yaml.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}
