package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/compat"
	"github.com/lixenwraith/logpipe/formatter"
	"github.com/lixenwraith/logpipe/sink"
)

func main() {
	// Rotating JSON file for everything, console for warnings and up
	file, err := sink.NewFile(sink.FileOptions{
		Path:       "logs/fasthttp.log",
		MaxSizeMB:  10,
		MaxBackups: 3,
	}, formatter.New().Type(formatter.FormatJSON))
	if err != nil {
		panic(err)
	}
	console := sink.NewConsole(sink.TargetStderr, nil)
	console.PinLevel(logpipe.LevelWarn)

	m, err := logpipe.NewBuilder().
		LevelString("info").
		Override("heartbeat_interval_s=60").
		OwnedSink(file).
		OwnedSink(console).
		Build()
	if err != nil {
		panic(err)
	}
	defer m.Dispose()

	// The host drives flushing; a server has no frame loop so a ticker stands in
	go func() {
		const tick = 100 * time.Millisecond
		for range time.Tick(tick) {
			_, _ = m.Update(tick.Seconds())
		}
	}()

	fasthttpAdapter := compat.NewFastHTTPAdapter(
		m,
		compat.WithDefaultLevel(logpipe.LevelInfo),
		compat.WithLevelDetector(customLevelDetector),
	)

	server := &fasthttp.Server{
		Handler: requestHandler(m),
		Logger:  fasthttpAdapter,

		Name:              "MyServer",
		Concurrency:       fasthttp.DefaultConcurrency,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		TCPKeepalive:      true,
		ReduceMemoryUsage: true,
	}

	fmt.Println("Starting server on :8080")
	if err := server.ListenAndServe(":8080"); err != nil {
		panic(err)
	}
}

func requestHandler(m *logpipe.Manager) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		ctx.SetContentType("text/plain")
		fmt.Fprintf(ctx, "Hello, world! Path: %s\n", ctx.Path())

		m.LogWithProperties(logpipe.LevelInfo, "http", "request served", logpipe.Properties{
			"method": string(ctx.Method()),
			"path":   string(ctx.Path()),
			"status": ctx.Response.StatusCode(),
			"took":   time.Since(start),
		})
	}
}

func customLevelDetector(msg string) int64 {
	if strings.Contains(msg, "connection cannot be served") {
		return logpipe.LevelWarn
	}
	if strings.Contains(msg, "error when serving connection") {
		return logpipe.LevelError
	}
	return compat.DetectLogLevel(msg)
}
