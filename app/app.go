package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"marcel.works/classpoll-go/app/api"
	"marcel.works/classpoll-go/app/auth"
	"marcel.works/classpoll-go/app/broadcast"
	"marcel.works/classpoll-go/app/config"
	"marcel.works/classpoll-go/app/metrics"
	"marcel.works/classpoll-go/app/polls"
	"marcel.works/classpoll-go/app/sessions"
	"marcel.works/classpoll-go/app/store"
	"marcel.works/classpoll-go/app/timers"
)

// App wires the poll engine, its collaborators and the HTTP surface.
type App struct {
	Config  config.Config
	Log     *zap.Logger
	Handler http.Handler

	closers []io.Closer
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	st, err := a.openStore(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("connected to store", zap.String("backend", cfg.Store))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	met := metrics.New(registry)

	sessionsReg := sessions.NewRegistry(log, met)
	fanout := broadcast.Fanout{sessionsReg}

	if cfg.BrokerAddr != "" {
		stompPub, err := broadcast.NewStompPublisher(cfg.BrokerAddr, cfg.BrokerUser, cfg.BrokerPass, cfg.BrokerTopic, log)
		if err != nil {
			return nil, err
		}
		fanout = append(fanout, stompPub)
		a.closers = append(a.closers, stompPub)
		log.Info("connected to broker", zap.String("addr", cfg.BrokerAddr))
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub := broadcast.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		fanout = append(fanout, kafkaPub)
		a.closers = append(a.closers, kafkaPub)
		log.Info("kafka event feed enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	timersReg := timers.NewRegistry(log)
	engine := polls.NewEngine(st, timersReg, fanout, met, log)
	authSvc := auth.NewService(st, cfg.JWTSecret, cfg.TokenTTL, log)

	handler := &api.Handler{
		Engine:   engine,
		Auth:     authSvc,
		Sessions: sessionsReg,
		Pub:      fanout,
		Met:      met,
		Log:      log,
	}
	a.Handler = api.NewRouter(handler, registry)
	return a, nil
}

func (a *App) openStore(cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case "rethinkdb":
		return store.NewRethinkStore(cfg.RethinkHosts)
	case "redis":
		return store.NewRedisStore(cfg.RedisAddr, cfg.RedisAuth)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

// Start serves until SIGINT/SIGTERM, then drains connections.
func (a *App) Start() error {
	server := &http.Server{
		Addr:    a.Config.Addr,
		Handler: a.Handler,
	}

	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		a.Log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	a.Log.Info("listening", zap.String("addr", a.Config.Addr))
	err := server.ListenAndServe()
	for _, c := range a.closers {
		_ = c.Close()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
