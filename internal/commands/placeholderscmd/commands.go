package placeholderscmd

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-cms-admin/internal/commands"
	"github.com/goliatone/go-cms-admin/internal/logging"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/placeholders"
	"github.com/goliatone/go-cms-admin/pkg/interfaces"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	"github.com/google/uuid"
)

const (
	copyLanguageMessageType     = "cms.placeholders.copy_language"
	clearPlaceholderMessageType = "cms.placeholders.clear"
)

// CopyLanguageCommand copies the plugins of every page placeholder from one
// language into another.
type CopyLanguageCommand struct {
	Actor          permissions.Principal `json:"-"`
	PageID         uuid.UUID             `json:"page_id"`
	SourceLanguage string                `json:"source_language"`
	TargetLanguage string                `json:"target_language"`
}

func (CopyLanguageCommand) Type() string { return copyLanguageMessageType }

func (m CopyLanguageCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.PageID, validation.By(requireID)),
		validation.Field(&m.SourceLanguage, validation.Required),
		validation.Field(&m.TargetLanguage, validation.Required,
			validation.NotIn(strings.TrimSpace(m.SourceLanguage)).Error("target language must differ from the source")),
	)
}

// ClearPlaceholderCommand empties a placeholder. An empty Language clears
// every language.
type ClearPlaceholderCommand struct {
	Actor         permissions.Principal `json:"-"`
	PlaceholderID uuid.UUID             `json:"placeholder_id"`
	Language      string                `json:"language,omitempty"`
}

func (ClearPlaceholderCommand) Type() string { return clearPlaceholderMessageType }

func (m ClearPlaceholderCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.PlaceholderID, validation.By(requireID)),
	)
}

func requireID(value any) error {
	if id, _ := value.(uuid.UUID); id == uuid.Nil {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
}

type CopyLanguageHandler struct {
	inner *commands.Handler[CopyLanguageCommand]
}

func NewCopyLanguageHandler(service placeholders.Service, logger interfaces.Logger, opts ...commands.HandlerOption[CopyLanguageCommand]) *CopyLanguageHandler {
	logger = logging.Ensure(logger)
	exec := func(ctx context.Context, msg CopyLanguageCommand) error {
		copied, err := service.CopyLanguage(ctx, msg.Actor, placeholders.CopyLanguageRequest{
			PageID:         msg.PageID,
			SourceLanguage: msg.SourceLanguage,
			TargetLanguage: msg.TargetLanguage,
		})
		if err != nil {
			return err
		}
		logger.Debug("placeholders.copy_language.copied", "page_id", msg.PageID, "count", len(copied))
		return nil
	}
	handlerOpts := []commands.HandlerOption[CopyLanguageCommand]{
		commands.WithLogger[CopyLanguageCommand](logger),
		commands.WithOperation[CopyLanguageCommand]("placeholders.copy_language"),
		commands.WithMessageFields(func(msg CopyLanguageCommand) map[string]any {
			return map[string]any{
				"page_id":         msg.PageID,
				"source_language": msg.SourceLanguage,
				"target_language": msg.TargetLanguage,
			}
		}),
	}
	return &CopyLanguageHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

func (h *CopyLanguageHandler) Execute(ctx context.Context, msg CopyLanguageCommand) error {
	return h.inner.Execute(ctx, msg)
}

type ClearPlaceholderHandler struct {
	inner *commands.Handler[ClearPlaceholderCommand]
}

func NewClearPlaceholderHandler(service placeholders.Service, logger interfaces.Logger, opts ...commands.HandlerOption[ClearPlaceholderCommand]) *ClearPlaceholderHandler {
	logger = logging.Ensure(logger)
	exec := func(ctx context.Context, msg ClearPlaceholderCommand) error {
		removed, err := service.ClearPlaceholder(ctx, msg.Actor, msg.PlaceholderID, msg.Language)
		if err != nil {
			return err
		}
		logger.Debug("placeholders.clear.removed", "placeholder_id", msg.PlaceholderID, "count", removed)
		return nil
	}
	handlerOpts := []commands.HandlerOption[ClearPlaceholderCommand]{
		commands.WithLogger[ClearPlaceholderCommand](logger),
		commands.WithOperation[ClearPlaceholderCommand]("placeholders.clear"),
		commands.WithMessageFields(func(msg ClearPlaceholderCommand) map[string]any {
			fields := map[string]any{"placeholder_id": msg.PlaceholderID}
			if msg.Language != "" {
				fields["language"] = msg.Language
			}
			return fields
		}),
	}
	return &ClearPlaceholderHandler{inner: commands.NewHandler(exec, append(handlerOpts, opts...)...)}
}

func (h *ClearPlaceholderHandler) Execute(ctx context.Context, msg ClearPlaceholderCommand) error {
	return h.inner.Execute(ctx, msg)
}

func Subscribe(service placeholders.Service, logger interfaces.Logger, runnerOpts ...runner.Option) []commands.Subscription {
	return []commands.Subscription{
		dispatcher.SubscribeCommand(NewCopyLanguageHandler(service, logger), runnerOpts...),
		dispatcher.SubscribeCommand(NewClearPlaceholderHandler(service, logger), runnerOpts...),
	}
}
