package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vrischmann/envconfig"
	"google.golang.org/grpc"

	"github.com/Sh00ty/dataflow-cp/internal/api/apirpc"
	"github.com/Sh00ty/dataflow-cp/internal/api/apiruntime"
	"github.com/Sh00ty/dataflow-cp/internal/lifecycle"
	"github.com/Sh00ty/dataflow-cp/internal/metrics"
	"github.com/Sh00ty/dataflow-cp/internal/store"
	"github.com/Sh00ty/dataflow-cp/pkg/api/cppbv1"
)

func loggerLevelFromString(level string) zerolog.Level {
	level = strings.ToLower(level)
	switch level {
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	}
	return zerolog.WarnLevel
}

type Config struct {
	LoggerLevel string `envconfig:"LOGGER_LEVEL,default=info"`

	ServerAddr string `envconfig:"GRPC_SERVER_ADDR,default=0.0.0.0"`
	ServerPort uint16 `envconfig:"GRPC_SERVER_PORT,default=13337"`
	ProbeAddr  string `envconfig:"PROBE_ADDR,default=0.0.0.0:8080"`

	StatsdAddr   string `envconfig:"STATSD_ADDR,optional"`
	StatsdPrefix string `envconfig:"STATSD_PREFIX,default=apps.dataflow-cp."`
	NodeName     string `envconfig:"NODE_NAME,default=coordinator-0"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	appCfg := Config{}
	err := envconfig.Init(&appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read app config")
	}
	log.Logger = log.Level(loggerLevelFromString(appCfg.LoggerLevel))

	mtr := metrics.NewNoop()
	if appCfg.StatsdAddr != "" {
		mtr = metrics.NewStatsd(appCfg.NodeName, appCfg.StatsdPrefix, appCfg.StatsdAddr)
	}

	st := store.New()
	lc := lifecycle.NewManager(st)
	lc.Register()

	runtime := apiruntime.NewRuntime(st, lc, mtr)
	cpSrv := apirpc.NewServer(runtime, cancel)

	srv := grpc.NewServer()
	cppbv1.RegisterControlPlaneServiceServer(srv, cpSrv)

	go func() {
		listenAddr := fmt.Sprintf("%s:%d", appCfg.ServerAddr, appCfg.ServerPort)

		log.Info().Msgf("running grpc server on %s", listenAddr)

		ls, err := net.Listen("tcp4", listenAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to bind server addr")
		}
		err = srv.Serve(ls)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start serving grpc requests")
		}
	}()

	serverClose := startProbeServer(appCfg.ProbeAddr)
	defer serverClose()

	<-ctx.Done()

	log.Info().Msg("stopping: draining sessions")
	runtime.CloseAll()
	srv.GracefulStop()
}

func startProbeServer(addr string) func() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		w.WriteHeader(http.StatusOK)
	})
	srv := http.Server{
		Handler: mux,
		Addr:    addr,
	}
	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start http server")
		}
	}()
	return func() {
		_ = srv.Close()
	}
}
