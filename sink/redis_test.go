package sink

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/logpipe"
)

// captureHook answers every command locally and records its arguments
type captureHook struct {
	mu        sync.Mutex
	pipelines [][][]any
	fail      error
}

func (h *captureHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial disabled in tests")
	}
}

func (h *captureHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		return h.fail
	}
}

func (h *captureHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()

		batch := make([][]any, len(cmds))
		for i, cmd := range cmds {
			batch[i] = cmd.Args()
		}
		h.pipelines = append(h.pipelines, batch)
		return h.fail
	}
}

func newTestRedis(t *testing.T, maxLen int64) (*Redis, *captureHook) {
	t.Helper()

	hook := &captureHook{}
	client := redis.NewClient(&redis.Options{Addr: "redis.test:6379"})
	client.AddHook(hook)

	s, err := NewRedis(RedisOptions{Client: client, Stream: "app-logs", MaxLen: maxLen})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, hook
}

func TestRedisPipelinesBatch(t *testing.T) {
	s, hook := newTestRedis(t, 1000)

	require.NoError(t, s.WriteBatch([]logpipe.Record{
		logpipe.NewRecord(logpipe.LevelInfo, "svc", "first", nil),
		logpipe.NewRecord(logpipe.LevelError, "svc", "second", logpipe.Properties{"code": 7}),
	}))

	require.Len(t, hook.pipelines, 1, "one round trip per batch")
	cmds := hook.pipelines[0]
	require.Len(t, cmds, 2)

	for _, args := range cmds {
		assert.Equal(t, "xadd", args[0])
		assert.Equal(t, "app-logs", args[1])
		assert.Contains(t, args, "maxlen")
		assert.Contains(t, args, "~")
	}

	args := cmds[1]
	values := args[len(args)-8:]
	assert.Equal(t, fieldLevel, values[0])
	assert.Equal(t, "ERROR", values[1])
	assert.Equal(t, fieldTag, values[2])
	assert.Equal(t, "svc", values[3])
	assert.Equal(t, fieldTime, values[4])
	assert.Equal(t, fieldData, values[6])

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(values[7].(string)), &data))
	assert.Equal(t, "second", data["message"])
	assert.Equal(t, map[string]any{"code": float64(7)}, data["fields"])
}

func TestRedisUntrimmedStream(t *testing.T) {
	s, hook := newTestRedis(t, 0)

	require.NoError(t, s.Write(logpipe.NewRecord(logpipe.LevelInfo, "svc", "m", nil)))
	require.Len(t, hook.pipelines, 1)
	assert.NotContains(t, hook.pipelines[0][0], "maxlen")
}

func TestRedisFailure(t *testing.T) {
	s, hook := newTestRedis(t, 0)
	hook.fail = errors.New("connection refused")

	err := s.Write(logpipe.NewRecord(logpipe.LevelInfo, "svc", "m", nil))
	assert.ErrorIs(t, err, hook.fail)

	require.NoError(t, s.WriteBatch(nil))
	assert.Len(t, hook.pipelines, 1, "empty batch sends nothing")
}

func TestRedisOptions(t *testing.T) {
	_, err := NewRedis(RedisOptions{})
	assert.ErrorIs(t, err, logpipe.ErrValidation)

	_, err = NewRedis(RedisOptions{Addr: "localhost:6379", MaxLen: -1})
	assert.ErrorIs(t, err, logpipe.ErrOutOfRange)

	s, err := NewRedis(RedisOptions{Addr: "localhost:6379"})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, defaultRedisStream, s.stream)
	assert.Equal(t, defaultRedisTimeout, s.timeout)
}
