package transaction

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Runner executes fn as one unit of work. Repositories reached through the
// ctx handed to fn join the same transaction.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func (f RunnerFunc) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// NoOp runs fn directly. Memory repositories use it.
func NoOp() Runner {
	return RunnerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	})
}

type bunRunner struct {
	manager repository.TransactionManager
}

// NewBunRunner opens bun transactions through manager, usually a *bun.DB.
// Nested calls join the transaction already bound to ctx.
func NewBunRunner(manager repository.TransactionManager) Runner {
	if manager == nil {
		return NoOp()
	}
	return bunRunner{manager: manager}
}

func (r bunRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	return r.manager.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(WithTx(ctx, tx))
	})
}

type txKey struct{}

// WithTx binds tx to ctx.
func WithTx(ctx context.Context, tx bun.IDB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// From returns the transaction bound to ctx.
func From(ctx context.Context) (bun.IDB, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txKey{}).(bun.IDB)
	return tx, ok && tx != nil
}

// The helpers below call the transactional variant of a repository method
// when ctx carries a transaction. Cached reads only apply outside one.

func GetByID[T any](ctx context.Context, repo repository.Repository[T], id string, criteria ...repository.SelectCriteria) (T, error) {
	if tx, ok := From(ctx); ok {
		return repo.GetByIDTx(ctx, tx, id, criteria...)
	}
	return repo.GetByID(ctx, id, criteria...)
}

func List[T any](ctx context.Context, repo repository.Repository[T], criteria ...repository.SelectCriteria) ([]T, int, error) {
	if tx, ok := From(ctx); ok {
		return repo.ListTx(ctx, tx, criteria...)
	}
	return repo.List(ctx, criteria...)
}

func Create[T any](ctx context.Context, repo repository.Repository[T], record T, criteria ...repository.InsertCriteria) (T, error) {
	if tx, ok := From(ctx); ok {
		return repo.CreateTx(ctx, tx, record, criteria...)
	}
	return repo.Create(ctx, record, criteria...)
}

func Update[T any](ctx context.Context, repo repository.Repository[T], record T, criteria ...repository.UpdateCriteria) (T, error) {
	if tx, ok := From(ctx); ok {
		return repo.UpdateTx(ctx, tx, record, criteria...)
	}
	return repo.Update(ctx, record, criteria...)
}

func Delete[T any](ctx context.Context, repo repository.Repository[T], record T) error {
	if tx, ok := From(ctx); ok {
		return repo.DeleteTx(ctx, tx, record)
	}
	return repo.Delete(ctx, record)
}
