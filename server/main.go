package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cs3238-tsuzu/movesync-online/internal/config"
	"github.com/cs3238-tsuzu/movesync-online/internal/logger"
	"github.com/cs3238-tsuzu/movesync-online/internal/relay"
)

func main() {
	cfg, err := config.LoadServer(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Server, log *zap.Logger) error {
	hub := relay.NewHub(cfg.BroadcastInterval, log)

	errc := make(chan error, 2)

	var ln net.Listener
	if cfg.TCPAddr != "" {
		var err error
		ln, err = net.Listen("tcp", cfg.TCPAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.TCPAddr, err)
		}
		go func() {
			if err := hub.ServeTCP(ctx, ln); err != nil {
				errc <- err
			}
		}()
	}

	var srv *http.Server
	if cfg.WSAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", hub.WebSocketHandler)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Headers", "*")
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			mux.ServeHTTP(w, r)
		})

		srv = &http.Server{Addr: cfg.WSAddr, Handler: handler}
		go func() {
			log.Info("listening", zap.String("proto", "ws"), zap.String("addr", cfg.WSAddr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}

	hubDone := make(chan error, 1)
	go func() { hubDone <- hub.Run(ctx) }()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}
	log.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}
	if ln != nil {
		ln.Close()
	}

	if runErr != nil {
		// Run only returns once ctx is done.
		return runErr
	}
	<-hubDone

	return nil
}
