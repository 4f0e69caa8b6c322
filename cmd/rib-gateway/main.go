package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/route-beacon/rib-gateway/internal/config"
	"github.com/route-beacon/rib-gateway/internal/gobgp"
	ribhttp "github.com/route-beacon/rib-gateway/internal/http"
	"github.com/route-beacon/rib-gateway/internal/metrics"
	"github.com/route-beacon/rib-gateway/internal/publish"
	"github.com/route-beacon/rib-gateway/internal/rib"
	"github.com/route-beacon/rib-gateway/internal/snapshot"
	"github.com/route-beacon/rib-gateway/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "rib":
		runRib()
	case "neighbor":
		runNeighbor()
	case "migrate":
		runMigrate()
	case "maintenance":
		runMaintenance()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: rib-gateway <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                 Poll the daemon and serve the decoded RIB")
	fmt.Println("  rib                   Fetch and decode the RIB once, print JSON")
	fmt.Println("  neighbor <list|get|add|del>")
	fmt.Println("                        Peer lifecycle operations")
	fmt.Println("  migrate               Run archive database migrations")
	fmt.Println("  maintenance           Purge archived snapshots past retention")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
}

func parseFlags(args []string) (configPath string, logLevel string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger) {
	configPath, logLevelOverride := parseFlags(args)
	return loadConfigFrom(configPath, logLevelOverride)
}

func loadConfigFrom(configPath, logLevelOverride string) (*config.Config, *zap.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// migrationsDir returns the path to the migrations directory relative to the binary.
func migrationsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "migrations"
	}
	return filepath.Join(filepath.Dir(exe), "migrations")
}

// ribSource applies the configured per-request timeout to RIB fetches.
type ribSource struct {
	client  *gobgp.Client
	timeout time.Duration
}

func (s *ribSource) GetRib(ctx context.Context) (*rib.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.GetRib(ctx)
}

func runServe() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	logger.Info("starting rib-gateway",
		zap.String("instance_id", cfg.Service.InstanceID),
		zap.String("gobgp_target", cfg.GoBGP.Target),
		zap.String("http_listen", cfg.Service.HTTPListen),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := gobgp.NewClient(cfg.GoBGP.Target, logger.Named("gobgp"))
	if err != nil {
		logger.Fatal("failed to create gobgp client", zap.Error(err))
	}
	defer client.Close()

	var sinks []snapshot.Sink
	var dbChecker ribhttp.DBChecker

	if cfg.Postgres.Enabled {
		pool, err := store.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()
		dbChecker = pool

		sinks = append(sinks, store.NewWriter(pool, logger.Named("store"),
			cfg.Postgres.StoreRawPayload, cfg.Postgres.CompressRawPayload))

		// Startup sweep; steady-state purging is the maintenance command's job.
		purger := store.NewPurger(pool, cfg.Postgres.RetentionDays, logger.Named("store.retention"))
		if err := purger.Run(ctx); err != nil {
			logger.Warn("startup retention purge failed", zap.Error(err))
		}
	}

	if cfg.Kafka.Enabled {
		tlsCfg, err := cfg.Kafka.BuildTLSConfig()
		if err != nil {
			logger.Fatal("failed to build TLS config", zap.Error(err))
		}
		producer, err := publish.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID,
			tlsCfg, cfg.Kafka.BuildSASLMechanism(), logger.Named("kafka"))
		if err != nil {
			logger.Fatal("failed to create kafka producer", zap.Error(err))
		}
		defer producer.Close()
		sinks = append(sinks, producer)
	}

	source := &ribSource{
		client:  client,
		timeout: time.Duration(cfg.GoBGP.RequestTimeoutSeconds) * time.Second,
	}
	extractor := rib.NewExtractor(logger.Named("rib"))
	poller := snapshot.NewPoller(source, extractor, sinks,
		time.Duration(cfg.Poll.IntervalSeconds)*time.Second,
		cfg.Service.InstanceID, logger.Named("poller"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	httpServer := ribhttp.NewServer(cfg.Service.HTTPListen, poller, client, dbChecker, logger.Named("http"))
	if err := httpServer.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	logger.Info("poller and HTTP server started",
		zap.Int("poll_interval_seconds", cfg.Poll.IntervalSeconds),
		zap.Int("sinks", len(sinks)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting HTTP traffic first, then stop polling.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("poller stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout reached, poller may not have finished")
	}

	logger.Info("rib-gateway stopped")
}

func runRib() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	client, err := gobgp.NewClient(cfg.GoBGP.Target, logger.Named("gobgp"))
	if err != nil {
		logger.Fatal("failed to create gobgp client", zap.Error(err))
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.GoBGP.RequestTimeoutSeconds)*time.Second)
	defer cancel()

	snap, err := client.GetRib(ctx)
	if err != nil {
		logger.Fatal("rib fetch failed", zap.Error(err))
	}

	routes := rib.NewExtractor(logger.Named("rib")).ExtractAll(snap)
	printJSON(routes)
}

func runNeighbor() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: rib-gateway neighbor <list|get|add|del> [options]")
		os.Exit(1)
	}

	sub := os.Args[2]
	args := os.Args[3:]

	switch sub {
	case "list":
		runNeighborList(args)
	case "get":
		runNeighborGet(args)
	case "add":
		runNeighborAdd(args)
	case "del":
		runNeighborDel(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown neighbor subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func neighborClient(configPath, logLevel string) (*gobgp.Client, *config.Config, *zap.Logger) {
	cfg, logger := loadConfigFrom(configPath, logLevel)
	client, err := gobgp.NewClient(cfg.GoBGP.Target, logger.Named("gobgp"))
	if err != nil {
		logger.Fatal("failed to create gobgp client", zap.Error(err))
	}
	return client, cfg, logger
}

func requestContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(),
		time.Duration(cfg.GoBGP.RequestTimeoutSeconds)*time.Second)
}

func runNeighborList(args []string) {
	fs := flag.NewFlagSet("neighbor list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration YAML file")
	logLevel := fs.String("log-level", "", "log level override")
	fs.Parse(args)

	client, cfg, logger := neighborClient(*configPath, *logLevel)
	defer client.Close()
	defer logger.Sync()

	ctx, cancel := requestContext(cfg)
	defer cancel()

	summaries, err := client.ListNeighbors(ctx)
	if err != nil {
		logger.Fatal("neighbor listing failed", zap.Error(err))
	}
	printJSON(summaries)
}

func runNeighborGet(args []string) {
	fs := flag.NewFlagSet("neighbor get", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration YAML file")
	logLevel := fs.String("log-level", "", "log level override")
	address := fs.String("address", "", "neighbor address")
	fs.Parse(args)

	if *address == "" {
		fmt.Fprintln(os.Stderr, "neighbor get: --address is required")
		os.Exit(1)
	}

	client, cfg, logger := neighborClient(*configPath, *logLevel)
	defer client.Close()
	defer logger.Sync()

	ctx, cancel := requestContext(cfg)
	defer cancel()

	summary, err := client.GetNeighbor(ctx, *address)
	if errors.Is(err, gobgp.ErrPeerNotFound) {
		fmt.Fprintf(os.Stderr, "peer %s not found\n", *address)
		os.Exit(1)
	}
	if err != nil {
		logger.Fatal("neighbor lookup failed", zap.Error(err))
	}
	printJSON(summary)
}

func runNeighborAdd(args []string) {
	fs := flag.NewFlagSet("neighbor add", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration YAML file")
	logLevel := fs.String("log-level", "", "log level override")

	var nc gobgp.NeighborConfig
	fs.StringVar(&nc.LocalAddress, "local-address", "", "local IPv4 peering address")
	fs.StringVar(&nc.NeighborAddress, "neighbor-address", "", "remote IPv4 peering address")
	localAS := fs.Uint("local-as", 0, "local autonomous system number")
	peerAS := fs.Uint("peer-as", 0, "remote autonomous system number")
	fs.StringVar(&nc.TransportAddress, "transport-address", "", "source address for BGP messages (default: local address)")
	noMultihop := fs.Bool("no-ebgp-multihop", false, "disable eBGP multihop")
	multihopTTL := fs.Uint("ebgp-multihop-ttl", 0, "eBGP multihop TTL (default 255)")
	fs.StringVar(&nc.RouterID, "router-id", "", "router id (default: local address)")
	fs.StringVar(&nc.AuthPassword, "auth-password", "", "BGP MD5 password")
	fs.StringVar(&nc.Description, "description", "", "free-text peer description")
	fs.Parse(args)

	nc.LocalAS = uint32(*localAS)
	nc.PeerAS = uint32(*peerAS)
	nc.EbgpMultihopTTL = uint32(*multihopTTL)
	nc.EbgpMultihop = !*noMultihop
	if *noMultihop && nc.EbgpMultihopTTL == 0 {
		// a zero TTL means "use defaults", which would turn multihop back on
		nc.EbgpMultihopTTL = 1
	}

	client, cfg, logger := neighborClient(*configPath, *logLevel)
	defer client.Close()
	defer logger.Sync()

	ctx, cancel := requestContext(cfg)
	defer cancel()

	if err := client.AddNeighbor(ctx, nc); err != nil {
		logger.Fatal("adding neighbor failed", zap.Error(err))
	}
	fmt.Printf("peer %s added\n", nc.NeighborAddress)
}

func runNeighborDel(args []string) {
	fs := flag.NewFlagSet("neighbor del", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration YAML file")
	logLevel := fs.String("log-level", "", "log level override")
	address := fs.String("address", "", "neighbor address")
	fs.Parse(args)

	if *address == "" {
		fmt.Fprintln(os.Stderr, "neighbor del: --address is required")
		os.Exit(1)
	}

	client, cfg, logger := neighborClient(*configPath, *logLevel)
	defer client.Close()
	defer logger.Sync()

	ctx, cancel := requestContext(cfg)
	defer cancel()

	err := client.DeleteNeighbor(ctx, *address)
	if errors.Is(err, gobgp.ErrPeerNotFound) {
		fmt.Fprintf(os.Stderr, "peer %s not found\n", *address)
		os.Exit(1)
	}
	if err != nil {
		logger.Fatal("deleting neighbor failed", zap.Error(err))
	}
	fmt.Printf("peer %s deleted\n", *address)
}

func runMigrate() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	if !cfg.Postgres.Enabled {
		logger.Fatal("migrate requires postgres.enabled")
	}

	logger.Info("running migrations",
		zap.String("dsn", redactDSN(cfg.Postgres.DSN)),
	)

	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := store.RunMigrations(ctx, pool, migrationsDir(), logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("migrations complete")
}

func runMaintenance() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	if !cfg.Postgres.Enabled {
		logger.Fatal("maintenance requires postgres.enabled")
	}

	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	purger := store.NewPurger(pool, cfg.Postgres.RetentionDays, logger.Named("store.retention"))
	if err := purger.Run(ctx); err != nil {
		logger.Fatal("maintenance failed", zap.Error(err))
	}

	logger.Info("maintenance complete")
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		// keyword=value format — redact password=... portion
		re := regexp.MustCompile(`password\s*=\s*\S+`)
		return re.ReplaceAllString(dsn, "password=***")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
