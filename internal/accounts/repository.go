package accounts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository stores admin accounts.
type Repository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, user *User) (*User, error)
	List(ctx context.Context) ([]*User, error)
}

// MemoryRepository keeps accounts in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*User
	names map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users: map[uuid.UUID]*User{},
		names: map[string]uuid.UUID{},
	}
}

func (m *MemoryRepository) Create(_ context.Context, user *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(user.Username)
	if _, exists := m.names[key]; exists {
		return nil, ErrUsernameExists
	}
	copied := cloneUser(user)
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	m.users[copied.ID] = copied
	m.names[key] = copied.ID
	return cloneUser(copied), nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, &NotFoundError{Key: id.String()}
	}
	return cloneUser(user), nil
}

func (m *MemoryRepository) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.names[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, &NotFoundError{Key: username}
	}
	return cloneUser(m.users[id]), nil
}

func (m *MemoryRepository) Update(_ context.Context, user *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return nil, &NotFoundError{Key: user.ID.String()}
	}
	copied := cloneUser(user)
	m.users[user.ID] = copied
	return cloneUser(copied), nil
}

func (m *MemoryRepository) List(_ context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.users))
	for _, user := range m.users {
		out = append(out, cloneUser(user))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// BunRepository persists accounts through go-repository-bun.
type BunRepository struct {
	repo repository.Repository[*User]
}

func NewBunRepository(db *bun.DB) *BunRepository {
	return NewBunRepositoryWithCache(db, nil, nil)
}

func NewBunRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *BunRepository {
	base := repository.MustNewRepository(db, repository.ModelHandlers[*User]{
		NewRecord:          func() *User { return &User{} },
		GetID:              func(u *User) uuid.UUID { return u.ID },
		SetID:              func(u *User, id uuid.UUID) { u.ID = id },
		GetIdentifier:      func() string { return "username" },
		GetIdentifierValue: func(u *User) string { return u.Username },
	})
	if cacheService != nil && keySerializer != nil {
		base = repositorycache.New(base, cacheService, keySerializer)
	}
	return &BunRepository{repo: base}
}

func (r *BunRepository) Create(ctx context.Context, user *User) (*User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return r.repo.Create(ctx, user)
}

func (r *BunRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapError(err, id.String())
	}
	return user, nil
}

func (r *BunRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(?TableAlias.username) = ?", strings.ToLower(strings.TrimSpace(username)))
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, mapError(err, username)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Key: username}
	}
	return records[0], nil
}

func (r *BunRepository) Update(ctx context.Context, user *User) (*User, error) {
	updated, err := r.repo.Update(ctx, user,
		repository.UpdateByID(user.ID.String()),
		repository.UpdateColumns("email", "is_active", "is_staff", "is_superuser", "permissions", "updated_at"),
	)
	if err != nil {
		return nil, mapError(err, user.ID.String())
	}
	return updated, nil
}

func (r *BunRepository) List(ctx context.Context) ([]*User, error) {
	records, _, err := r.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("?TableAlias.username ASC")
	}))
	return records, err
}

func mapError(err error, key string) error {
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &NotFoundError{Key: key}
	}
	return fmt.Errorf("user repository error: %w", err)
}
