package preferences

import (
	"errors"
	"fmt"
)

// ErrNoGuestData is returned when aggregation is asked to run over zero guest records.
var ErrNoGuestData = errors.New("no guest preference records supplied")

// MalformedRecordError reports a record that does not match the preference document shape.
type MalformedRecordError struct {
	RecordID string
	Field    string
	Err      error
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("preference record %q is malformed: %v", e.RecordID, e.Err)
	}
	return fmt.Sprintf("preference record %q field %s is malformed: %v", e.RecordID, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// HostRecordInvalidError reports a host document that could not be parsed. Aggregation
// continues on guest data when it occurs.
type HostRecordInvalidError struct {
	Err error
}

func (e *HostRecordInvalidError) Error() string {
	return fmt.Sprintf("host preferences invalid: %v", e.Err)
}

func (e *HostRecordInvalidError) Unwrap() error {
	return e.Err
}
