package region

import "fmt"

// ValidationError reports an annotation set the mapper cannot process.
// It is user-recoverable: the caller should re-prompt for a new selection.
type ValidationError struct {
	Expected int
	Got      int
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return "invalid annotations: " + e.Reason
	}
	return fmt.Sprintf("expected exactly %d annotations, got %d", e.Expected, e.Got)
}
