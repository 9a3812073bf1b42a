package registry

import (
	"errors"
	"strconv"
)

// capacityExceededError is returned when every slot is taken.
type capacityExceededError struct{ capacity int }

func (e capacityExceededError) Error() string {
	return "context limit reached (capacity " + strconv.Itoa(e.capacity) + ")"
}

func ErrCapacityExceeded(capacity int) error { return capacityExceededError{capacity: capacity} }

// IsCapacityExceeded reports whether err means the registry is full.
func IsCapacityExceeded(err error) bool {
	var e capacityExceededError
	return errors.As(err, &e)
}

type notFoundError struct{ id int }

func (e notFoundError) Error() string { return "context not found: " + strconv.Itoa(e.id) }

func ErrNotFound(id int) error { return notFoundError{id: id} }

// IsNotFound reports whether err refers to an unknown context id.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}
