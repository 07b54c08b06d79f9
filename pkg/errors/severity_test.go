package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnknownPortError(t *testing.T) {
	cause := stderrors.New("no rows")
	err := fmt.Errorf("failed to resolve arrival port: %w", NewUnknownPortError("XXYYZ", cause))

	assert.Equal(t, ErrCodeUnknownPort, CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "[fatal] UNKNOWN_PORT: port not found (XXYYZ)")
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Empty(t, CodeOf(stderrors.New("boom")))
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "unknown", Severity(42).String())
}
