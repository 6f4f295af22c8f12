package activity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DefaultChannel tags admin log entries emitted by the cms admin.
const DefaultChannel = "cms.admin"

var (
	ErrVerbRequired       = errors.New("activity: verb is required")
	ErrObjectTypeRequired = errors.New("activity: object type is required")
)

// Event describes a single admin action.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Hook receives emitted events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, event Event) error

func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	return fn(ctx, event)
}

// Hooks fans an event out to every hook, joining their errors.
type Hooks []Hook

func (h Hooks) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Option func(*Emitter)

// WithChannel overrides DefaultChannel.
func WithChannel(channel string) Option {
	return func(e *Emitter) {
		if trimmed := strings.TrimSpace(channel); trimmed != "" {
			e.channel = trimmed
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(e *Emitter) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// Emitter stamps events and forwards them to hooks. A nil or hookless
// emitter drops events.
type Emitter struct {
	hooks   Hooks
	channel string
	clock   func() time.Time
}

func NewEmitter(hooks Hooks, opts ...Option) *Emitter {
	e := &Emitter{
		hooks:   hooks,
		channel: DefaultChannel,
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Enabled reports whether emitted events reach at least one hook.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit validates event, fills channel and timestamp, then notifies hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	event.Verb = strings.TrimSpace(event.Verb)
	event.ObjectType = strings.TrimSpace(event.ObjectType)
	if event.Verb == "" {
		return ErrVerbRequired
	}
	if event.ObjectType == "" {
		return ErrObjectTypeRequired
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.clock().UTC()
	}
	if event.DefinitionCode == "" {
		event.DefinitionCode = event.ObjectType + ":" + event.Verb
	}
	return e.hooks.Notify(ctx, event)
}
