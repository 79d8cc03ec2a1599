package history

import (
	"fmt"

	"github.com/pkg/errors"
)

// MalformedHistoryError reports a history that violates the structural
// invariants a test harness guarantees. It points at a bug upstream of
// the verifier; the history cannot be checked.
type MalformedHistoryError struct {
	History string
	Reason  string
}

func (e *MalformedHistoryError) Error() string {
	return fmt.Sprintf("malformed history %q: %s", e.History, e.Reason)
}

func malformed(h *History, format string, args ...interface{}) error {
	return errors.WithStack(&MalformedHistoryError{
		History: h.Name(),
		Reason:  fmt.Sprintf(format, args...),
	})
}

// IsMalformed reports whether err was caused by a MalformedHistoryError.
func IsMalformed(err error) bool {
	_, ok := errors.Cause(err).(*MalformedHistoryError)
	return ok
}
