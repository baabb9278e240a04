package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/metalagman/aletheia/internal/model"
	"github.com/rs/zerolog/log"
)

const (
	fallbackName = "Agent"
	avatarURL    = "https://api.dicebear.com/7.x/avataaars/svg?seed="
)

// MapUser converts a provider record into the user shown by the dashboard.
func MapUser(pu ProviderUser, now time.Time) model.User {
	name := strings.TrimSpace(pu.DisplayName)
	if name == "" {
		if local, _, ok := strings.Cut(pu.Email, "@"); ok && local != "" {
			name = local
		}
	}
	if name == "" {
		name = fallbackName
	}
	avatar := strings.TrimSpace(pu.PhotoURL)
	if avatar == "" {
		avatar = avatarURL + pu.UID
	}
	connected := pu.SignedInAt
	if connected.IsZero() {
		connected = now
	}
	return model.User{Name: name, Email: pu.Email, Avatar: avatar, ConnectedAt: connected}
}

// Manager holds the process-wide current user.
type Manager struct {
	provider Provider
	now      func() time.Time

	mu      sync.RWMutex
	current *model.User
	subs    map[int]func(*model.User)
	nextSub int
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a manager fed by provider.
func NewManager(provider Provider) *Manager {
	return &Manager{provider: provider, now: time.Now, subs: map[int]func(*model.User){}}
}

// Start subscribes to provider notifications and returns once the current
// user is known.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return errors.New("session manager already started")
	}
	watchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	ready := make(chan struct{})
	errCh := make(chan error, 1)
	var once sync.Once

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.provider.Watch(watchCtx, func(pu *ProviderUser) {
			m.apply(pu)
			once.Do(func() { close(ready) })
		})
		if err != nil {
			log.Warn().Err(err).Msg("session: watch stopped")
		}
		errCh <- err
		once.Do(func() { close(ready) })
	}()

	<-ready
	select {
	case err := <-errCh:
		if err != nil {
			cancel()
			return err
		}
	default:
	}
	return nil
}

// Close stops provider notifications.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Current returns a copy of the signed-in user or nil.
func (m *Manager) Current() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	u := *m.current
	return &u
}

// Subscribe registers fn for user changes and returns an unsubscribe func.
func (m *Manager) Subscribe(fn func(*model.User)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// SignIn signs in with the named provider.
func (m *Manager) SignIn(ctx context.Context, providerName string) (*model.User, error) {
	pu, err := m.provider.SignIn(ctx, providerName)
	if err != nil {
		return nil, err
	}
	m.apply(pu)
	return m.Current(), nil
}

// SignOut signs the current user out.
func (m *Manager) SignOut(ctx context.Context) error {
	if err := m.provider.SignOut(ctx); err != nil {
		return err
	}
	m.apply(nil)
	return nil
}

func (m *Manager) apply(pu *ProviderUser) {
	var next *model.User
	if pu != nil {
		u := MapUser(*pu, m.now())
		next = &u
	}

	m.mu.Lock()
	if sameUser(m.current, next) {
		m.mu.Unlock()
		return
	}
	m.current = next
	subs := make([]func(*model.User), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		var u *model.User
		if next != nil {
			c := *next
			u = &c
		}
		fn(u)
	}
}

func sameUser(a, b *model.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Email == b.Email && a.Name == b.Name && a.Avatar == b.Avatar && a.ConnectedAt.Equal(b.ConnectedAt)
}
