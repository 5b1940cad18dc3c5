package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dl-alexandre/ghmirror/internal/auth"
	mirror "github.com/dl-alexandre/ghmirror/internal/sync"
	"github.com/dl-alexandre/ghmirror/internal/sync/index"
	"github.com/dl-alexandre/ghmirror/internal/sync/scanner"
	"github.com/dl-alexandre/ghmirror/internal/types"
	"github.com/dl-alexandre/ghmirror/internal/utils"
)

// toCLIError converts an error returned by the mirror stack into a stable CLI error
func toCLIError(err error) types.CLIError {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr.CLIError
	}

	var fetchErr *mirror.FetchError
	if errors.As(err, &fetchErr) {
		return fetchCLIError(fetchErr)
	}

	var readErr *scanner.LocalReadError
	if errors.As(err, &readErr) {
		return utils.NewCLIError(utils.ErrCodeLocalReadFailed, err.Error()).
			WithContext("path", readErr.Path).
			Build()
	}

	switch {
	case errors.Is(err, context.Canceled):
		return utils.NewCLIError(utils.ErrCodeCancelled, err.Error()).Build()
	case errors.Is(err, context.DeadlineExceeded):
		return utils.NewCLIError(utils.ErrCodeTimeout, err.Error()).WithRetryable(true).Build()
	case errors.Is(err, mirror.ErrLocked):
		return utils.NewCLIError(utils.ErrCodeLocked, err.Error()).WithRetryable(true).Build()
	case errors.Is(err, mirror.ErrIncomplete):
		return utils.NewCLIError(utils.ErrCodeBatchPartialFailure, err.Error()).Build()
	case errors.Is(err, index.ErrNotFound):
		return utils.NewCLIError(utils.ErrCodeFileNotFound, err.Error()).Build()
	case errors.Is(err, scanner.ErrInvalidPath):
		return utils.NewCLIError(utils.ErrCodeInvalidPath, err.Error()).Build()
	case errors.Is(err, auth.ErrNoToken):
		return utils.NewCLIError(utils.ErrCodeAuthRequired, err.Error()).Build()
	}
	return utils.NewCLIError(utils.ErrCodeUnknown, err.Error()).Build()
}

func fetchCLIError(err *mirror.FetchError) types.CLIError {
	switch err.Reason {
	case mirror.FetchAuth:
		return utils.NewCLIError(utils.ErrCodeAuthInvalid, err.Error()).
			WithReason(string(err.Reason)).
			Build()
	case mirror.FetchForbidden:
		return utils.NewCLIError(utils.ErrCodePermissionDenied, err.Error()).
			WithReason(string(err.Reason)).
			Build()
	case mirror.FetchNotFound:
		return utils.NewCLIError(utils.ErrCodeFileNotFound, err.Error()).
			WithReason(string(err.Reason)).
			Build()
	case mirror.FetchInvalid:
		return utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).
			WithReason(string(err.Reason)).
			Build()
	}
	if errors.Is(err, context.Canceled) {
		return utils.NewCLIError(utils.ErrCodeCancelled, err.Error()).Build()
	}
	return utils.NewCLIError(utils.ErrCodeFetchFailed, err.Error()).
		WithReason(string(err.Reason)).
		WithRetryable(true).
		Build()
}

func invalidArgument(format string, args ...interface{}) types.CLIError {
	return utils.NewCLIError(utils.ErrCodeInvalidArgument, fmt.Sprintf(format, args...)).Build()
}
