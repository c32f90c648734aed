package coordinator

import (
	"errors"

	"github.com/google/uuid"
)

// errorsIs is a thin alias kept local to this package so adminserver.go
// reads naturally alongside the rest of the §7 error-kind dispatch.
func errorsIs(err, target error) bool {
	return errors.Is(err, target)
}

// newMessageID mints a unique ID for a message originated by the admin
// surface, the same way the rest of the core mints IDs via uuid.
func newMessageID() string {
	return uuid.NewString()
}
