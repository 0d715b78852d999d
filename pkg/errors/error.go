// package errors contains domain errors that different layers can use to add
// meaning to an error and that the handler layer can transform to a status
// code. This is implemented as a separate package in order to avoid cycle
// import errors.
package errors

import (
	"fmt"
)

// The following errors serve as domain errors that can be used by the
// different layers. The handlers in the entrypoint will intercept these and
// convert them to the relevant HTTP codes.
var (
	// ErrInvalidArgument is used when the provided argument is incorrect (e.g.
	// category, extension, size).
	ErrInvalidArgument = fmt.Errorf("invalid")
	// ErrNotFound is used when a resource doesn't exist or is soft-deleted.
	ErrNotFound = fmt.Errorf("not found")
	// ErrUnauthenticated is used when no valid authentication is provided.
	ErrUnauthenticated = fmt.Errorf("unauthenticated")
	// ErrUnavailable is used when an external collaborator (index, parser)
	// can't be reached or isn't configured.
	ErrUnavailable = fmt.Errorf("unavailable")
)
