package main

import (
	"os"
	"time"

	"github.com/panjf2000/gnet/v2"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/compat"
	"github.com/lixenwraith/logpipe/sink"
)

// echoServer echoes traffic and drives the pipeline from gnet's tick
type echoServer struct {
	gnet.BuiltinEventEngine
	manager *logpipe.Manager
	tick    time.Duration
}

func (es *echoServer) OnBoot(eng gnet.Engine) gnet.Action {
	es.manager.Info("echo", "server booted")
	return gnet.None
}

func (es *echoServer) OnTraffic(c gnet.Conn) gnet.Action {
	buf, _ := c.Next(-1)
	_, _ = c.Write(buf)
	es.manager.LogWithProperties(logpipe.LevelDebug, "echo", "echoed", logpipe.Properties{
		"bytes":  len(buf),
		"remote": c.RemoteAddr().String(),
	})
	return gnet.None
}

func (es *echoServer) OnTick() (time.Duration, gnet.Action) {
	_, _ = es.manager.Update(es.tick.Seconds())
	return es.tick, gnet.None
}

func main() {
	var sinks []sink.Config
	if len(os.Args) > 1 {
		loaded, err := sink.LoadConfigs(os.Args[1])
		if err != nil {
			panic(err)
		}
		sinks = loaded
	} else {
		sinks = []sink.Config{{Type: sink.TypeZerolog, Target: sink.TargetStdout}}
	}

	b := logpipe.NewBuilder().LevelString("debug")
	if err := sink.Attach(b, sinks); err != nil {
		panic(err)
	}
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	defer m.Dispose()

	gnetAdapter, err := compat.NewBuilder().WithManager(m).BuildStructuredGnet()
	if err != nil {
		panic(err)
	}

	err = gnet.Run(
		&echoServer{manager: m, tick: 50 * time.Millisecond},
		"tcp://127.0.0.1:9000",
		gnet.WithMulticore(true),
		gnet.WithTicker(true),
		gnet.WithLogger(gnetAdapter),
		gnet.WithReusePort(true),
	)
	if err != nil {
		panic(err)
	}
}
