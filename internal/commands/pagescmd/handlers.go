package pagescmd

import (
	"context"

	"github.com/goliatone/go-cms-admin/internal/commands"
	"github.com/goliatone/go-cms-admin/internal/logging"
	"github.com/goliatone/go-cms-admin/internal/pages"
	"github.com/goliatone/go-cms-admin/pkg/interfaces"
	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// PublishPageHandler runs PublishPageCommand against the page service.
type PublishPageHandler struct {
	inner *commands.Handler[PublishPageCommand]
}

func NewPublishPageHandler(service pages.Service, logger interfaces.Logger, opts ...commands.HandlerOption[PublishPageCommand]) *PublishPageHandler {
	exec := func(ctx context.Context, msg PublishPageCommand) error {
		_, err := service.Publish(ctx, msg.Actor, msg.PageID, msg.Language)
		return err
	}
	return &PublishPageHandler{inner: commands.NewHandler(exec, handlerOptions(logger, "pages.publish",
		func(msg PublishPageCommand) map[string]any { return messageFields(msg.PageID, msg.Language, msg.Actor) },
		opts)...)}
}

func (h *PublishPageHandler) Execute(ctx context.Context, msg PublishPageCommand) error {
	return h.inner.Execute(ctx, msg)
}

type UnpublishPageHandler struct {
	inner *commands.Handler[UnpublishPageCommand]
}

func NewUnpublishPageHandler(service pages.Service, logger interfaces.Logger, opts ...commands.HandlerOption[UnpublishPageCommand]) *UnpublishPageHandler {
	exec := func(ctx context.Context, msg UnpublishPageCommand) error {
		return service.Unpublish(ctx, msg.Actor, msg.PageID, msg.Language)
	}
	return &UnpublishPageHandler{inner: commands.NewHandler(exec, handlerOptions(logger, "pages.unpublish",
		func(msg UnpublishPageCommand) map[string]any { return messageFields(msg.PageID, msg.Language, msg.Actor) },
		opts)...)}
}

func (h *UnpublishPageHandler) Execute(ctx context.Context, msg UnpublishPageCommand) error {
	return h.inner.Execute(ctx, msg)
}

type RevertPageHandler struct {
	inner *commands.Handler[RevertPageCommand]
}

func NewRevertPageHandler(service pages.Service, logger interfaces.Logger, opts ...commands.HandlerOption[RevertPageCommand]) *RevertPageHandler {
	exec := func(ctx context.Context, msg RevertPageCommand) error {
		return service.Revert(ctx, msg.Actor, msg.PageID, msg.Language)
	}
	return &RevertPageHandler{inner: commands.NewHandler(exec, handlerOptions(logger, "pages.revert",
		func(msg RevertPageCommand) map[string]any { return messageFields(msg.PageID, msg.Language, msg.Actor) },
		opts)...)}
}

func (h *RevertPageHandler) Execute(ctx context.Context, msg RevertPageCommand) error {
	return h.inner.Execute(ctx, msg)
}

type DeleteTranslationHandler struct {
	inner *commands.Handler[DeleteTranslationCommand]
}

func NewDeleteTranslationHandler(service pages.Service, logger interfaces.Logger, opts ...commands.HandlerOption[DeleteTranslationCommand]) *DeleteTranslationHandler {
	exec := func(ctx context.Context, msg DeleteTranslationCommand) error {
		return service.DeleteTranslation(ctx, msg.Actor, msg.PageID, msg.Language)
	}
	return &DeleteTranslationHandler{inner: commands.NewHandler(exec, handlerOptions(logger, "pages.translation.delete",
		func(msg DeleteTranslationCommand) map[string]any { return messageFields(msg.PageID, msg.Language, msg.Actor) },
		opts)...)}
}

func (h *DeleteTranslationHandler) Execute(ctx context.Context, msg DeleteTranslationCommand) error {
	return h.inner.Execute(ctx, msg)
}

// Subscribe registers every page command with the global dispatcher.
func Subscribe(service pages.Service, logger interfaces.Logger, runnerOpts ...runner.Option) []commands.Subscription {
	return []commands.Subscription{
		dispatcher.SubscribeCommand(NewPublishPageHandler(service, logger), runnerOpts...),
		dispatcher.SubscribeCommand(NewUnpublishPageHandler(service, logger), runnerOpts...),
		dispatcher.SubscribeCommand(NewRevertPageHandler(service, logger), runnerOpts...),
		dispatcher.SubscribeCommand(NewDeleteTranslationHandler(service, logger), runnerOpts...),
	}
}

func handlerOptions[T command.Message](logger interfaces.Logger, operation string, fields func(T) map[string]any, extra []commands.HandlerOption[T]) []commands.HandlerOption[T] {
	logger = logging.Ensure(logger)
	opts := []commands.HandlerOption[T]{
		commands.WithLogger[T](logger),
		commands.WithOperation[T](operation),
		commands.WithMessageFields(fields),
		commands.WithTelemetry(commands.LogTelemetry[T](nil)),
	}
	return append(opts, extra...)
}
