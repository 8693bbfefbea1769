package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/camgen/internal/remote"
	"github.com/mark3labs/camgen/internal/schema"
)

var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}

// sourceUsageError turns loader and server failures about a user supplied
// source into usage errors that carry the location details.
func sourceUsageError(name string, err error) error {
	var se *schema.SourceError
	if errors.As(err, &se) {
		var b strings.Builder
		fmt.Fprintf(&b, "%s: %s: %s", name, se.Code, se.Message)
		if se.Location != "" {
			fmt.Fprintf(&b, "\nLocation: %s", se.Location)
		}
		if se.JSONPointer != "" {
			fmt.Fprintf(&b, "\nPointer: %s", se.JSONPointer)
		}
		return newUsageError(b.String())
	}
	var st *remote.StatusError
	if errors.As(err, &st) {
		return newUsageError(fmt.Sprintf("%s: %v", name, st))
	}
	return fmt.Errorf("%s: %w", name, err)
}
