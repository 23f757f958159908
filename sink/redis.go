package sink

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/formatter"
)

const (
	defaultRedisStream  = "logpipe"
	defaultRedisTimeout = 2 * time.Second
)

// Stream entry field names
const (
	fieldLevel = "level"
	fieldTag   = "tag"
	fieldTime  = "time"
	fieldData  = "data"
)

// RedisOptions configures a Redis stream sink
type RedisOptions struct {
	Addr    string
	Stream  string        // defaults to "logpipe"
	MaxLen  int64         // approximate stream trim length, 0 keeps everything
	Timeout time.Duration // per batch, defaults to 2s
	Client  *redis.Client // optional, overrides Addr
}

// Redis appends each record to a Redis stream, one pipelined XADD per record per batch
type Redis struct {
	logpipe.SinkBase
	mu      sync.Mutex
	client  *redis.Client
	stream  string
	maxLen  int64
	timeout time.Duration
	format  *formatter.Formatter
}

// NewRedis creates a stream sink. The connection is established on first use.
func NewRedis(opts RedisOptions) (*Redis, error) {
	client := opts.Client
	if client == nil {
		if opts.Addr == "" {
			return nil, errorf("%w: redis sink needs an addr", errMissingOption)
		}
		client = redis.NewClient(&redis.Options{Addr: opts.Addr})
	}
	if opts.Stream == "" {
		opts.Stream = defaultRedisStream
	}
	if opts.MaxLen < 0 {
		return nil, errorf("%w: redis max_len must not be negative, got %d", logpipe.ErrOutOfRange, opts.MaxLen)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRedisTimeout
	}
	return &Redis{
		client:  client,
		stream:  opts.Stream,
		maxLen:  opts.MaxLen,
		timeout: opts.Timeout,
		format:  formatter.New().Type(formatter.FormatJSON),
	}, nil
}

// Write appends a single record
func (s *Redis) Write(r logpipe.Record) error {
	return s.WriteBatch([]logpipe.Record{r})
}

// WriteBatch sends the whole batch in one pipeline round trip
func (s *Redis) WriteBatch(records []logpipe.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	pipe := s.client.Pipeline()
	for _, r := range records {
		pipe.XAdd(ctx, s.streamArgs(r))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errorf("xadd %d records to %s: %w", len(records), s.stream, err)
	}
	return nil
}

// streamArgs builds the XADD arguments for one record
func (s *Redis) streamArgs(r logpipe.Record) *redis.XAddArgs {
	data := s.format.Format(r)
	return &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		Values: []any{
			fieldLevel, logpipe.LevelName(r.Level),
			fieldTag, r.Tag,
			fieldTime, r.Timestamp.UnixNano(),
			// Drop the trailing newline; the formatter buffer is reused so copy it out
			fieldData, string(data[:len(data)-1]),
		},
	}
}

// Close closes the Redis client
func (s *Redis) Close() error {
	return s.client.Close()
}
