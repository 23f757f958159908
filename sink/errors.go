package sink

import (
	"errors"
	"fmt"

	"github.com/lixenwraith/logpipe"
)

var (
	errMissingOption = fmt.Errorf("%w: missing sink option", logpipe.ErrValidation)
	errUnknownType   = fmt.Errorf("%w: unknown sink type", logpipe.ErrValidation)
	// ErrStatus is returned when a remote endpoint rejects a batch
	ErrStatus = errors.New("sink: unexpected response status")
)

// errorf formats an error with the package prefix
func errorf(format string, args ...any) error {
	return fmt.Errorf("sink: "+format, args...)
}
