package overflow

import (
	"errors"
	"fmt"
)

// ContentTooLargeError reports content above the absolute ceiling. No
// degraded handling is attempted for it: blind summarization at that size is
// neither reliable nor affordable.
type ContentTooLargeError struct {
	Source  string
	Tokens  int
	Ceiling int
}

func (e *ContentTooLargeError) Error() string {
	return fmt.Sprintf(
		"content from %s exceeds maximum limit of %d tokens (%d tokens), cannot process",
		e.Source, e.Ceiling, e.Tokens,
	)
}

// IsContentTooLarge checks if an error indicates content above the ceiling.
func IsContentTooLarge(err error) bool {
	var target *ContentTooLargeError

	return errors.As(err, &target)
}
