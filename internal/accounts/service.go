package accounts

import (
	"context"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// Service manages admin accounts and their model level permissions.
type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Grant(ctx context.Context, id uuid.UUID, perms ...string) (*User, error)
	Revoke(ctx context.Context, id uuid.UUID, perms ...string) (*User, error)
	List(ctx context.Context) ([]*User, error)
}

type CreateUserRequest struct {
	Username    string
	Email       string
	Staff       bool
	Superuser   bool
	Inactive    bool
	Permissions []string
}

func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required.Error(ErrUsernameRequired.Error()), validation.Length(1, 150)),
	)
}

type ServiceOption func(*service)

func WithClock(clock func() time.Time) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.now = clock
		}
	}
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository, opts ...ServiceOption) Service {
	s := &service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return s.repo.Create(ctx, &User{
		ID:          uuid.New(),
		Username:    req.Username,
		Email:       strings.TrimSpace(req.Email),
		IsActive:    !req.Inactive,
		IsStaff:     req.Staff || req.Superuser,
		IsSuperuser: req.Superuser,
		Permissions: normalizePerms(req.Permissions),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *service) Grant(ctx context.Context, id uuid.UUID, perms ...string) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Permissions = normalizePerms(append(user.Permissions, perms...))
	user.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, user)
}

func (s *service) Revoke(ctx context.Context, id uuid.UUID, perms ...string) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	drop := normalizePerms(perms)
	user.Permissions = slices.DeleteFunc(normalizePerms(user.Permissions), func(p string) bool {
		return slices.Contains(drop, p)
	})
	user.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, user)
}

func (s *service) List(ctx context.Context) ([]*User, error) {
	return s.repo.List(ctx)
}

func normalizePerms(perms []string) []string {
	out := make([]string, 0, len(perms))
	for _, perm := range perms {
		perm = strings.ToLower(strings.TrimSpace(perm))
		if perm != "" && !slices.Contains(out, perm) {
			out = append(out, perm)
		}
	}
	slices.Sort(out)
	return out
}
