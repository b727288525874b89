package planning

import "errors"

var (
	// ErrInvalidPeriodType is returned for period types other than
	// MONTH, QUARTER, YEAR.
	ErrInvalidPeriodType = errors.New("invalid period type")

	// ErrInvalidPeriodKey is returned when a period key does not match
	// the format required by its period type.
	ErrInvalidPeriodKey = errors.New("invalid period key")
)
