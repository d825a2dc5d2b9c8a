package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arklim/user-directory/internal/core/domain"
	"github.com/arklim/user-directory/internal/infra/security"
	"github.com/arklim/user-directory/internal/repository"
)

// memoryUsers mimics the store's unique email index under a mutex.
type memoryUsers struct {
	mu      sync.Mutex
	byID    map[string]domain.User
	byEmail map[string]string

	existsDelay time.Duration
	failWith    error
	createCalls int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]domain.User{}, byEmail: map[string]string{}}
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	id, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := m.byID[id]
	return &u, nil
}

func (m *memoryUsers) List(context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryUsers) Create(_ context.Context, user domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if _, taken := m.byEmail[user.Email]; taken {
		return nil, repository.ErrDuplicateEmail
	}
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user.ID
	return &user, nil
}

func (m *memoryUsers) Update(_ context.Context, user domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.byID[user.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if len(user.PasswordDigest) == 0 {
		user.PasswordDigest, user.PasswordSalt, user.PasswordAlgo = existing.PasswordDigest, existing.PasswordSalt, existing.PasswordAlgo
	}
	m.byID[user.ID] = user
	return &user, nil
}

func (m *memoryUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byEmail, u.Email)
	return nil
}

func (m *memoryUsers) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	_, ok := m.byEmail[email]
	fail := m.failWith
	delay := m.existsDelay
	m.mu.Unlock()
	if fail != nil {
		return false, fail
	}
	// Widen the check-then-create gap so concurrent registrations overlap.
	time.Sleep(delay)
	return ok, nil
}

type recordingPublisher struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	updated    []domain.UserUpdatedEvent
	deleted    []domain.UserDeletedEvent
	err        error
}

func (p *recordingPublisher) PublishUserRegistered(_ context.Context, e domain.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, e)
	return p.err
}

func (p *recordingPublisher) PublishUserUpdated(_ context.Context, e domain.UserUpdatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, e)
	return p.err
}

func (p *recordingPublisher) PublishUserDeleted(_ context.Context, e domain.UserDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, e)
	return p.err
}

var errStoreDown = errors.New("store unavailable")

func newHasher(t *testing.T) *security.CredentialHasher {
	t.Helper()
	hasher, err := security.NewCredentialHasher("", security.DefaultArgon2Config())
	if err != nil {
		t.Fatalf("NewCredentialHasher returned error: %v", err)
	}
	return hasher
}

func newIssuer(t *testing.T) *security.TokenIssuer {
	t.Helper()
	issuer, err := security.NewTokenIssuer(security.TokenConfig{
		Secret:   []byte(strings.Repeat("k", 48)),
		Issuer:   "user-directory",
		Audience: "user-directory-clients",
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	return issuer
}
