package runtime

import "errors"

// Two failure kinds, distinguished by caller recoverability.
var (
	// ErrLogic marks a violation of the lifecycle contract: a programming
	// mistake by the embedding application, not expected to be retried.
	ErrLogic = errors.New("lifecycle contract violated")

	// ErrInvalidArgument marks a recoverable caller error: a duplicate
	// name on registration or a lookup miss.
	ErrInvalidArgument = errors.New("invalid argument")
)
