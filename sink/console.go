package sink

import (
	"io"
	"os"

	"github.com/lixenwraith/logpipe/formatter"
)

// Console targets
const (
	TargetStdout = "stdout"
	TargetStderr = "stderr"
)

// Console writes formatted records to stdout or stderr
type Console struct {
	*Writer
}

// NewConsole creates a console sink. Any target other than "stderr" writes to stdout.
func NewConsole(target string, f *formatter.Formatter) *Console {
	return &Console{Writer: NewWriter(consoleWriter(target), f)}
}

// Close is a no-op; the process standard streams stay open
func (c *Console) Close() error {
	return nil
}

func consoleWriter(target string) io.Writer {
	if target == TargetStderr {
		return os.Stderr
	}
	return os.Stdout
}
