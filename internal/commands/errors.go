package commands

import (
	"context"
	"errors"

	"github.com/goliatone/go-cms-admin/internal/pages"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/placeholders"
	goerrors "github.com/goliatone/go-errors"
)

const (
	CodeInvalidMessage   = "CMS_COMMAND_INVALID"
	CodeCancelled        = "CMS_COMMAND_CANCELLED"
	CodeTimedOut         = "CMS_COMMAND_TIMEOUT"
	CodeContextFailed    = "CMS_COMMAND_CONTEXT"
	CodePermissionDenied = "CMS_COMMAND_FORBIDDEN"
	CodeTargetNotFound   = "CMS_COMMAND_NOT_FOUND"
	CodeRejected         = "CMS_COMMAND_REJECTED"
	CodeFailed           = "CMS_COMMAND_FAILED"
)

// wrapValidationError tags message validation failures so HTTP can map them to 400.
func wrapValidationError(err error) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid command message").
		WithTextCode(CodeInvalidMessage)
}

func wrapContextError(err error) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command cancelled").WithTextCode(CodeCancelled)
	case errors.Is(err, context.DeadlineExceeded):
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command timed out").WithTextCode(CodeTimedOut)
	default:
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command context failed").WithTextCode(CodeContextFailed)
	}
}

// wrapExecuteError classifies service failures. Rejected input from the page
// and placeholder services keeps the validation category; everything else is
// a command failure with a code naming the cause.
func wrapExecuteError(err error) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	var (
		pageMissing        *pages.NotFoundError
		placeholderMissing *placeholders.NotFoundError
	)
	switch {
	case errors.Is(err, permissions.ErrPermissionDenied):
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command not permitted").WithTextCode(CodePermissionDenied)
	case errors.As(err, &pageMissing), errors.As(err, &placeholderMissing):
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command target not found").WithTextCode(CodeTargetNotFound)
	case pages.IsClientError(err), placeholders.IsClientError(err):
		return goerrors.Wrap(err, goerrors.CategoryValidation, "command rejected").WithTextCode(CodeRejected)
	default:
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command failed").WithTextCode(CodeFailed)
	}
}
