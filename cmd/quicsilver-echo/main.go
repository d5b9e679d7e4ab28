// File: cmd/quicsilver-echo/main.go
// License: Apache-2.0
//
// Demo: an echo server and client over the in-memory loopback engine,
// driven end to end through the bridge from a single host loop. Every
// callback in this program fires synchronously inside Drive.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hahmed/quicsilver/api"
	"github.com/hahmed/quicsilver/bridge"
	"github.com/hahmed/quicsilver/dispatch"
	"github.com/hahmed/quicsilver/fake"
	"github.com/hahmed/quicsilver/metrics"
)

type config struct {
	Addr           string        `env:"ADDR" envDefault:"127.0.0.1"`
	Port           uint16        `env:"PORT" envDefault:"4433"`
	ALPN           string        `env:"ALPN" envDefault:"quicsilver"`
	Message        string        `env:"MESSAGE" envDefault:"hello over quicsilver"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
}

// echoServer is the singleton server handler: it answers every completed
// inbound stream with a reply stream carrying the same bytes.
type echoServer struct {
	b   *bridge.Bridge
	log *zap.Logger
}

func (s *echoServer) Handle(desc api.ConnDescriptor, streamID uint64, kind api.EventKind, payload []byte) {
	switch kind {
	case api.EventConnected:
		s.log.Info("server: peer connected", zap.Uint64("conn", uint64(desc.Conn)))
	case api.EventDataFinal:
		from, chunk := dispatch.DecodeFinalPayload(payload)
		s.log.Info("server: request complete",
			zap.Uint64("stream_id", streamID),
			zap.Uint64("origin", uint64(from)),
			zap.ByteString("data", chunk))

		conn, ok := s.b.Adopt(desc)
		if !ok {
			s.log.Warn("server: connection vanished before reply")
			return
		}
		reply, err := conn.OpenStream(false)
		if err != nil {
			s.log.Error("server: reply stream", zap.Error(err))
			return
		}
		if err := reply.Send(chunk, true); err != nil {
			s.log.Error("server: reply send", zap.Error(err))
		}
	case api.EventClosed:
		s.log.Info("server: peer gone", zap.Uint64("conn", uint64(desc.Conn)))
	}
}

// echoClient is the logical owner of the client connection.
type echoClient struct {
	log  *zap.Logger
	done chan []byte
}

func (c *echoClient) HandleEvent(streamID uint64, kind api.EventKind, payload []byte) {
	if kind == api.EventDataFinal {
		_, chunk := dispatch.DecodeFinalPayload(payload)
		select {
		case c.done <- chunk:
		default:
		}
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file, using environment")
	}
	var cfg config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "QUICSILVER_"}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bridge.New(fake.New(),
		bridge.WithLogger(logger),
		bridge.WithMetrics(metrics.New(nil)),
	)
	if err := b.Open(); err != nil {
		return fmt.Errorf("open bridge: %w", err)
	}
	defer b.Close()

	b.SetServerHandler(&echoServer{b: b, log: logger})

	svrCfg := api.Config{ALPN: cfg.ALPN, IdleTimeout: 10 * time.Second}
	listener, err := b.OpenListener(svrCfg)
	if err != nil {
		return fmt.Errorf("open listener: %w", err)
	}
	if err := listener.Start(cfg.Addr, cfg.Port, cfg.ALPN); err != nil {
		return fmt.Errorf("start listener: %w", err)
	}

	client := &echoClient{log: logger, done: make(chan []byte, 1)}
	conn, err := b.OpenConnection(client)
	if err != nil {
		return fmt.Errorf("open connection: %w", err)
	}
	cliCfg := api.Config{ALPN: cfg.ALPN, IsClient: true, SkipCertValidation: true}
	if err := conn.Start(cliCfg, cfg.Addr, cfg.Port); err != nil {
		return fmt.Errorf("start connection: %w", err)
	}
	if res := conn.WaitForConnected(cfg.ConnectTimeout); res != bridge.WaitReady {
		return fmt.Errorf("connect: %s", res)
	}
	logger.Info("client: connected")

	stream, err := conn.OpenStream(true)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	if err := stream.Send([]byte(cfg.Message), true); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case echoed := <-client.done:
				logger.Info("client: echo received", zap.ByteString("data", echoed))
				return nil
			default:
			}
			if _, err := b.Drive(); err != nil {
				return fmt.Errorf("drive: %w", err)
			}
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
