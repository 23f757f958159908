package sink

import (
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lixenwraith/logpipe/formatter"
)

// FileOptions configures a rotating file sink
type FileOptions struct {
	Path       string
	MaxSizeMB  int // rotate after this size, lumberjack defaults to 100 when 0
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// File writes formatted records to a size-rotated file
type File struct {
	*Writer
	logger *lumberjack.Logger
}

// NewFile creates a file sink. The file is opened lazily on the first write.
func NewFile(opts FileOptions, f *formatter.Formatter) (*File, error) {
	if opts.Path == "" {
		return nil, errorf("%w: file sink needs a path", errMissingOption)
	}
	logger := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	return &File{
		Writer: NewWriter(logger, f),
		logger: logger,
	}, nil
}

// Rotate closes the current file and starts a new one
func (s *File) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.logger.Rotate()
}

// Path returns the active file name
func (s *File) Path() string {
	return s.logger.Filename
}
