package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bvp_relay/internal/config"
	"bvp_relay/internal/handlers"
	"bvp_relay/internal/logger"
	"bvp_relay/internal/repository"
	"bvp_relay/internal/repository/db"
	"bvp_relay/internal/sensor"
	"bvp_relay/internal/server"
	"bvp_relay/internal/service"
	"bvp_relay/internal/transport"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var errNoSensorSDK = errors.New("no wristband SDK is linked into this build; set sensor.simulate: true")

var rootCmd = &cobra.Command{
	Use:   "bvp-relay",
	Short: "Relay wristband BVP telemetry to an analysis server",
	Long: `bvp-relay connects to a wearable sensor, calibrates its blood volume
pulse stream, batches it and forwards the batches over a WebSocket to an
analysis server. Operator controls and live state are served over HTTP.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().String("config", "", "Config file (default configs/config.yml)")
	rootCmd.PersistentFlags().String("log-level", logger.InfoLevel, "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return err
	}
	if err := v.BindPFlag("log.level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	log := logger.Get(cfg.Log.Level)
	defer func() { _ = log.Sync() }()
	if cfg.Log.Level != logger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, log)
}

// serve wires the relay and blocks until ctx is canceled or the HTTP
// server fails.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if !cfg.Sensor.Simulate {
		return errNoSensorSDK
	}

	database, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() {
		if cerr := database.Close(); cerr != nil {
			log.Errorw("sqlite_close_failed", "err", cerr)
		}
	}()

	repos := repository.NewRepository(database)
	device := sensor.NewSimulator(cfg.Simulator())
	session := transport.NewSession(transport.Options{
		QueueSize: cfg.Transport.SendQueue,
		Log:       log.Named("transport"),
	})

	rt, err := service.NewRuntime(cfg.Controller(), device, session, repos, log.Named("session"))
	if err != nil {
		return err
	}
	device.Register(rt.Controller)
	session.SetHandler(rt.Controller)

	// background loops
	bg, cancelBG := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, loop := range []func(context.Context){rt.Display.Run, rt.Events.Run, device.Run} {
		wg.Add(1)
		go func(loop func(context.Context)) {
			defer wg.Done()
			loop(bg)
		}(loop)
	}

	api := handlers.NewHandler(rt.Service, log)
	srv := server.New(cfg.HTTP.Port, api.InitRoutes())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	log.Infow("relay_started",
		"addr", srv.Addr(),
		"db", cfg.DB.Path,
		"batch_size", cfg.Pipeline.BatchSize,
		"default_server", cfg.DefaultEndpoint().Address(),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		if runErr != nil {
			log.Errorw("http_server_failed", "err", runErr)
		}
	}

	log.Infow("shutting down relay...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http_shutdown_failed", "err", err)
	}

	rt.DisconnectServer()
	cancelBG()
	wg.Wait()
	return runErr
}
