package pilotage

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateConfig matches every registry configuration failure. Callers that
// can substitute a fallback estimate test for it with errors.Is.
var ErrRateConfig = errors.New("pilotage rate configuration")

// UnknownZoneError means the registry has no versions for a zone.
type UnknownZoneError struct {
	Zone string
}

func (e *UnknownZoneError) Error() string {
	if e.Zone == "" {
		return "pilotage zone is required"
	}
	return fmt.Sprintf("no pilotage rates configured for zone %s", e.Zone)
}

func (e *UnknownZoneError) Is(target error) bool { return target == ErrRateConfig }

// NoEffectiveVersionError means every version of a zone starts after the requested date.
type NoEffectiveVersionError struct {
	Zone string
	AsOf time.Time
}

func (e *NoEffectiveVersionError) Error() string {
	return fmt.Sprintf("no pilotage rates effective on %s for zone %s", e.AsOf.Format(dateLayout), e.Zone)
}

func (e *NoEffectiveVersionError) Is(target error) bool { return target == ErrRateConfig }

// MissingRateFieldError names the exact registry path that is absent, e.g. NORCAL.bar.base_fee.
type MissingRateFieldError struct {
	Path string
}

func (e *MissingRateFieldError) Error() string {
	return fmt.Sprintf("missing rate field: %s", e.Path)
}

func (e *MissingRateFieldError) Is(target error) bool { return target == ErrRateConfig }

// InvalidRateFieldError means a field is present but cannot be parsed.
type InvalidRateFieldError struct {
	Path string
	Err  error
}

func (e *InvalidRateFieldError) Error() string {
	return fmt.Sprintf("invalid rate field %s: %v", e.Path, e.Err)
}

func (e *InvalidRateFieldError) Unwrap() error { return e.Err }

func (e *InvalidRateFieldError) Is(target error) bool { return target == ErrRateConfig }
