package utils

import (
	"errors"
	"testing"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeAuthRequired, ExitAuthRequired},
		{ErrCodeFileNotFound, ExitFileNotFound},
		{ErrCodeFetchFailed, ExitFetchFailed},
		{ErrCodeLocalReadFailed, ExitLocalReadFailed},
		{ErrCodeBatchPartialFailure, ExitBatchPartialFailure},
		{ErrCodeCancelled, ExitCancelled},
		{"SOMETHING_NEW", ExitUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := GetExitCode(tt.code); got != tt.want {
				t.Fatalf("GetExitCode(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestCLIErrorBuilder(t *testing.T) {
	cliErr := NewCLIError(ErrCodeFetchFailed, "boom").
		WithHTTPStatus(502).
		WithReason("network").
		WithRetryable(true).
		WithContext("repository", "octo/repo").
		Build()

	if cliErr.Code != ErrCodeFetchFailed || cliErr.Message != "boom" {
		t.Fatalf("unexpected error: %#v", cliErr)
	}
	if cliErr.HTTPStatus != 502 || cliErr.Reason != "network" || !cliErr.Retryable {
		t.Fatalf("builder fields not applied: %#v", cliErr)
	}
	if cliErr.Context["repository"] != "octo/repo" {
		t.Fatalf("context not applied: %#v", cliErr.Context)
	}
}

func TestAppErrorUnwrapsWithErrorsAs(t *testing.T) {
	var err error = NewAppError(NewCLIError(ErrCodeBatchPartialFailure, "2 actions failed").Build())

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("expected errors.As to find AppError")
	}
	if appErr.ExitCode() != ExitBatchPartialFailure {
		t.Fatalf("ExitCode() = %d, want %d", appErr.ExitCode(), ExitBatchPartialFailure)
	}
	if err.Error() != "BATCH_PARTIAL_FAILURE: 2 actions failed" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
