// Command holdemd runs the hold'em dealer: a websocket gateway over the room
// service, hand manager and scheduler, backed by sqlite or postgres.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cardroom/holdemd/internal/events"
	"github.com/cardroom/holdemd/internal/room"
	"github.com/cardroom/holdemd/internal/server"
	"github.com/cardroom/holdemd/internal/store"
)

var CLI struct {
	Config   string `help:"Path to HCL configuration file" short:"c" default:"holdemd.hcl"`
	Addr     string `help:"Listen address, overrides the config file" short:"a"`
	DBDriver string `help:"Database driver (sqlite3 or postgres), overrides the config file" name:"db-driver"`
	DBDSN    string `help:"Database DSN, overrides the config file" name:"db-dsn"`
	LogLevel string `help:"Log level (debug, info, warn, error)" short:"l"`
	Debug    bool   `help:"Shorthand for --log-level=debug" short:"d"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("holdemd"),
		kong.Description("Multi-room no-limit hold'em dealer over websockets."),
	)

	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		kctx.Exit(1)
	}

	if CLI.Addr != "" {
		cfg.Server.Address = CLI.Addr
	}
	if CLI.DBDriver != "" {
		cfg.Database.Driver = CLI.DBDriver
	}
	if CLI.DBDSN != "" {
		cfg.Database.DSN = CLI.DBDSN
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if CLI.Debug {
		cfg.Server.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		kctx.Exit(1)
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("holdemd exited", "error", err)
		kctx.Exit(1)
	}
}

func run(cfg *server.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	clock := quartz.NewReal()
	pub := events.NewPublisher(logger, 0)
	presence := room.NewPresence(clock)
	manager := room.NewManager(st, pub, clock, logger)
	sched := room.NewScheduler(manager, presence, clock, logger, room.Timeouts{})
	manager.SetScheduler(sched)

	svc := server.NewRoomService(st, pub, presence, clock, logger)
	if err := svc.SeedRooms(ctx, cfg.Rooms); err != nil {
		return fmt.Errorf("failed to seed rooms: %w", err)
	}

	srv := server.NewServer(cfg.Server.Address, svc, manager, logger)

	logger.Info("starting holdemd",
		"addr", cfg.Server.Address,
		"driver", cfg.Database.Driver,
		"rooms", len(cfg.Rooms))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		sched.Shutdown()
		manager.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
