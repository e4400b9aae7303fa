package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"glyphstat/domain/core"
)

func TestWrapDerivesCodeFromSentinel(t *testing.T) {
	tests := []struct {
		cause  error
		code   string
		status int
	}{
		{fmt.Errorf("verdict x: %w", core.ErrVerdictNotFound), CodeNotFound, http.StatusNotFound},
		{core.NewValidationError("seed", "negative"), CodeInvalidInput, http.StatusBadRequest},
		{core.NewProtocolViolation("h1", "threshold changed"), CodeProtocolViolation, http.StatusConflict},
		{&core.InsufficientSampleError{Subject: "class 3", Observed: 8, Required: 50}, CodeInsufficientSample, http.StatusInternalServerError},
		{fmt.Errorf("%w: 20000 > 10000", core.ErrNullExhaustion), CodeNullExhaustion, http.StatusInternalServerError},
		{stderrors.New("boom"), CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		err := Wrap(tt.cause, "run hypothesis")
		if got := GetCode(err); got != tt.code {
			t.Errorf("Expected code %s for %v, got %s", tt.code, tt.cause, got)
		}
		if got := HTTPStatus(err); got != tt.status {
			t.Errorf("Expected status %d for %v, got %d", tt.status, tt.cause, got)
		}
		if !stderrors.Is(err, tt.cause) {
			t.Errorf("Expected wrapped error to keep its cause")
		}
	}
}

func TestWrapKeepsAppErrorCode(t *testing.T) {
	base := ConfigInvalid("workers must be positive")
	err := Wrapf(fmt.Errorf("load: %w", base), "config %s", "glyphstat.yaml")

	if GetCode(err) != CodeConfigInvalid {
		t.Errorf("Expected %s, got %s", CodeConfigInvalid, GetCode(err))
	}
	if Wrap(nil, "noop") != nil {
		t.Errorf("Expected nil for nil cause")
	}
}
