package lib

import "fmt"

// WrapError wraps a dynamic error into a sentinel error so both can be
// matched with errors.Is
func WrapError(parent error, err error) error {
	return fmt.Errorf("%w: %w", parent, err)
}
