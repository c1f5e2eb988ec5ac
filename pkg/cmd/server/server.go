package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/cmd/util"
	"github.com/mpapenbr/racestrategy/pkg/config"
	"github.com/mpapenbr/racestrategy/pkg/publish"
	"github.com/mpapenbr/racestrategy/pkg/server"
	"github.com/mpapenbr/racestrategy/pkg/utils"
)

func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "starts the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.ServerAddr,
		"addr",
		"a",
		"localhost:8080",
		"HTTP server listen address")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"publish optimization reports to this NATS server (empty: disabled)")
	cmd.Flags().StringVar(&config.NatsSubject,
		"nats-subject",
		publish.DefaultSubject,
		"base subject for published reports, the track is appended")
	return cmd
}

//nolint:funlen // by design
func startServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := util.Setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if env.Files != nil {
		if err := env.Files.Watch(ctx); err != nil {
			log.Warn("profile files are not watched", log.ErrorField(err))
		}
	}

	opts := []server.Option{
		server.WithParallelism(config.Parallelism),
		server.WithLogger(env.Logger.Named("server")),
	}
	if config.NatsURL != "" {
		conn, err := connectNats(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		opts = append(opts, server.WithPublisher(
			publish.New(conn,
				publish.WithSubject(config.NatsSubject),
				publish.WithLogger(env.Logger.Named("publish")))))
	}

	//nolint:gosec // by design
	srv := &http.Server{
		Addr:        config.ServerAddr,
		Handler:     server.New(env.Resolver, opts...).Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	setupGoRoutinesDump()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", log.String("addr", config.ServerAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server could not be started", log.ErrorField(err))
			return err
		}
	case <-ctx.Done():
		log.Debug("Got signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown", log.ErrorField(err))
		}
	}
	log.Info("Server terminated")
	return nil
}

func connectNats(ctx context.Context) (*nats.Conn, error) {
	if err := util.WaitForServices(ctx, utils.ExtractFromNatsURL(config.NatsURL)); err != nil {
		return nil, err
	}
	conn, err := publish.Connect(config.NatsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", log.ErrorField(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", log.String("url", c.ConnectedUrl()))
		}))
	if err != nil {
		return nil, fmt.Errorf("nats: %w", err)
	}
	return conn, nil
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}
