package transaction_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-cms-admin/internal/transaction"
	"github.com/goliatone/go-cms-admin/pkg/testsupport"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type note struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	ID   uuid.UUID `bun:",pk,type:uuid"`
	Body string    `bun:"body"`
}

func newNotes(t *testing.T) (*bun.DB, repository.Repository[*note]) {
	t.Helper()
	db := testsupport.NewBunDB(t, (*note)(nil))
	repo := repository.MustNewRepository(db, repository.ModelHandlers[*note]{
		NewRecord:          func() *note { return &note{} },
		GetID:              func(n *note) uuid.UUID { return n.ID },
		SetID:              func(n *note, id uuid.UUID) { n.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(n *note) string { return n.ID.String() },
	})
	return db, repo
}

func countNotes(t *testing.T, ctx context.Context, repo repository.Repository[*note]) int {
	t.Helper()
	_, total, err := transaction.List(ctx, repo)
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	return total
}

func TestBunRunnerCommitsAndRollsBack(t *testing.T) {
	db, repo := newNotes(t)
	runner := transaction.NewBunRunner(db)
	ctx := context.Background()

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, ok := transaction.From(ctx); !ok {
			t.Fatalf("expected a transaction bound to ctx")
		}
		_, err := transaction.Create(ctx, repo, &note{ID: uuid.New(), Body: "kept"})
		return err
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	boom := errors.New("boom")
	err = runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := transaction.Create(ctx, repo, &note{ID: uuid.New(), Body: "dropped"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if got := countNotes(t, ctx, repo); got != 1 {
		t.Fatalf("expected only the committed note, got %d", got)
	}
}

func TestBunRunnerJoinsOuterTransaction(t *testing.T) {
	db, repo := newNotes(t)
	runner := transaction.NewBunRunner(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		outer, _ := transaction.From(ctx)
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			inner, _ := transaction.From(ctx)
			if inner != outer {
				t.Fatalf("expected nested call to reuse the outer transaction")
			}
			_, err := transaction.Create(ctx, repo, &note{ID: uuid.New(), Body: "nested"})
			return err
		})
		if err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if got := countNotes(t, ctx, repo); got != 0 {
		t.Fatalf("expected nested write rolled back with the outer one, got %d", got)
	}
}

func TestNoOpRunsInline(t *testing.T) {
	ctx := context.Background()
	called := false
	err := transaction.NoOp().RunInTx(ctx, func(ctx context.Context) error {
		called = true
		if _, ok := transaction.From(ctx); ok {
			t.Fatalf("expected no transaction bound")
		}
		return nil
	})
	if err != nil || !called {
		t.Fatalf("expected fn to run, called=%v err=%v", called, err)
	}
	if runner := transaction.NewBunRunner(nil); runner == nil {
		t.Fatalf("expected a runner for a nil manager")
	}
}
