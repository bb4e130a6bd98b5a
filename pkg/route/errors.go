package route

import "errors"

// Route table errors.
var (
	// ErrCapacityExceeded is returned when every route slot is live.
	ErrCapacityExceeded = errors.New("route: table full")

	// ErrDuplicateRegistration is returned when registering a message ID
	// that already owns a live route.
	ErrDuplicateRegistration = errors.New("route: message ID already routed")

	// ErrInvalidMsgID is returned for message IDs outside the valid range.
	ErrInvalidMsgID = errors.New("route: invalid message ID")

	// ErrInvalidRouteID is returned for the invalid sentinel or a handle
	// beyond the table capacity.
	ErrInvalidRouteID = errors.New("route: invalid route ID")

	// ErrRouteNotFound is returned when a route handle does not name a
	// live route.
	ErrRouteNotFound = errors.New("route: route not found")

	// ErrDuplicateDestination is returned when adding a destination that
	// is already attached to the route.
	ErrDuplicateDestination = errors.New("route: destination already attached")

	// ErrDestinationNotFound is returned when removing a destination that
	// is not attached to the route.
	ErrDestinationNotFound = errors.New("route: destination not attached")
)
