package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/app/courier"
	"courier-dispatch/internal/app/dispatcher"
	"courier-dispatch/internal/app/ordersource"
	"courier-dispatch/internal/bus"
	"courier-dispatch/internal/common/config"
	"courier-dispatch/internal/common/logger"
	"courier-dispatch/internal/connections/database"
	"courier-dispatch/internal/connections/rabbitmq"
	"courier-dispatch/internal/connections/redisconn"
	"courier-dispatch/internal/decision"
	"courier-dispatch/internal/directory"
	"courier-dispatch/internal/dispatch"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/rating"
	"courier-dispatch/internal/sim"
)

var courierNames = []string{
	"alex", "sam", "robin", "camille", "noa", "lina", "mael", "eli", "nora", "rayan",
}

func main() {
	mode := flag.String("mode", "", "dispatcher | courier | order-source | import-menu")
	cfgPath := flag.String("config", "config.yaml", "path to YAML config")
	name := flag.String("name", "", "courier: courier id (generated when empty)")
	auto := flag.Bool("auto", false, "answer every prompt automatically")
	flag.Parse()

	lg := logger.New("bootstrap")
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": *cfgPath})
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "dispatcher":
		err = runDispatcher(ctx, cfg, *auto)
	case "courier":
		err = runCourier(ctx, cfg, *name, *auto)
	case "order-source":
		err = runOrderSource(ctx, cfg, *auto)
	case "import-menu":
		err = runImport(ctx, cfg)
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: dispatcher | courier | order-source | import-menu")
		os.Exit(2)
	}
	if err != nil && ctx.Err() == nil {
		lg.Error("fatal", err, map[string]any{"mode": *mode})
		os.Exit(1)
	}
}

func runDispatcher(ctx context.Context, cfg config.App, auto bool) error {
	lg := logger.New("dispatcher")
	b, cleanup, err := buildBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	dir, err := buildDirectory(ctx, cfg, lg)
	if err != nil {
		return err
	}
	ledger := buildLedger(ctx, cfg, lg)

	var picker decision.WinnerPicker = decision.Auto{}
	if !auto {
		picker = decision.NewTerminal(os.Stdin, os.Stdout)
	}

	mgr := dispatch.NewManager(b, dir, ledger, picker, cfg.Dispatch, lg)
	return dispatcher.Run(ctx, b, mgr, cfg.Dispatch.PollInterval, lg)
}

func runCourier(ctx context.Context, cfg config.App, name string, auto bool) error {
	if name == "" {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		name = fmt.Sprintf("%s-%s", courierNames[rng.Intn(len(courierNames))], uuid.NewString()[:8])
	}
	lg := logger.New("courier")
	b, cleanup, err := buildBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var decide decision.OfferDecider = decision.Auto{}
	if !auto {
		decide = decision.NewTerminal(os.Stdin, os.Stdout)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := geoStart(cfg.Courier, rng)
	simulator := sim.New(sim.Config{
		SpeedKmh: cfg.Courier.SpeedKmh,
		Tick:     cfg.Courier.Tick,
		Pause:    cfg.Courier.Pause,
	}, sim.WallClock())

	agent := courier.NewAgent(b, decide, simulator, courier.Config{
		Name:             name,
		Start:            start,
		SelectionTimeout: cfg.Courier.SelectionTimeout,
		PollInterval:     cfg.Courier.PollInterval,
	}, lg)
	return agent.Run(ctx)
}

func runOrderSource(ctx context.Context, cfg config.App, auto bool) error {
	lg := logger.New("order-source")
	b, cleanup, err := buildBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	dir, err := buildDirectory(ctx, cfg, lg)
	if err != nil {
		return err
	}
	ledger := buildLedger(ctx, cfg, lg)

	var decide ordersource.Decider = decision.Auto{}
	if !auto {
		decide = decision.NewTerminal(os.Stdin, os.Stdout)
	}
	return ordersource.Run(ctx, b, dir, ledger, decide, cfg.OrderSource, lg)
}

func runImport(ctx context.Context, cfg config.App) error {
	lg := logger.New("import-menu")
	if cfg.Database.Host == "" {
		return fmt.Errorf("import-menu requires a database section in the config")
	}
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	rows, err := directory.ReadRowsFile(cfg.OrderSource.MenuCSV)
	if err != nil {
		return err
	}
	n, err := directory.Import(ctx, pool, rows)
	if err != nil {
		return err
	}
	lg.Info("menu_imported", map[string]any{"rows": n, "csv": cfg.OrderSource.MenuCSV})
	return nil
}

func buildBus(ctx context.Context, cfg config.App) (bus.Bus, func(), error) {
	switch cfg.Bus.Kind {
	case "rabbitmq":
		client, err := rabbitmq.Dial(cfg.Rabbit)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq connect: %w", err)
		}
		b, err := bus.NewRabbit(client)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return b, client.Close, nil
	default:
		client, err := redisconn.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis connect: %w", err)
		}
		b := bus.NewRedis(client)
		return b, func() { _ = client.Close() }, nil
	}
}

// buildDirectory prefers Postgres when the config names a database; a
// configured menu CSV serves as the standalone fallback.
func buildDirectory(ctx context.Context, cfg config.App, lg *logger.Logger) (directory.Directory, error) {
	if cfg.Database.Host != "" {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		lg.Info("directory_backend", map[string]any{"kind": "postgres"})
		return directory.NewPostgres(pool), nil
	}
	dir, err := directory.LoadCSV(cfg.OrderSource.MenuCSV)
	if err != nil {
		return nil, fmt.Errorf("load menu csv: %w", err)
	}
	lg.Info("directory_backend", map[string]any{"kind": "csv", "path": cfg.OrderSource.MenuCSV})
	return dir, nil
}

// buildLedger uses the Redis rating store when Redis is reachable and falls
// back to a process-local ledger otherwise (ratings then do not survive the
// process).
func buildLedger(ctx context.Context, cfg config.App, lg *logger.Logger) rating.Ledger {
	client, err := redisconn.New(ctx, cfg.Redis)
	if err != nil {
		lg.Warn("rating_ledger_fallback", map[string]any{"reason": err.Error()})
		return rating.NewMemory()
	}
	return rating.NewRedis(client)
}

func geoStart(cfg config.CourierConfig, rng *rand.Rand) geo.Point {
	center := geo.Point{Lat: cfg.CenterLat, Lon: cfg.CenterLon}
	return geo.Jitter(center, cfg.JitterKm, rng)
}
