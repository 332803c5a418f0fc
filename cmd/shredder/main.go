package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dfsshred/shredder/pkg/config"
	"github.com/dfsshred/shredder/pkg/coordinator"
	"github.com/dfsshred/shredder/pkg/ingest"
	"github.com/dfsshred/shredder/pkg/jobstore"
	"github.com/dfsshred/shredder/pkg/lease"
	"github.com/dfsshred/shredder/pkg/log"
	"github.com/dfsshred/shredder/pkg/metrics"
	"github.com/dfsshred/shredder/pkg/oracle"
	"github.com/dfsshred/shredder/pkg/shred"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "shredder",
	Short:   "Secure deletion coordinator for block-replicated DFS files",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("shredder version %s\ncommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML configuration file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(shredderCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newStore(cfg config.Config) (*jobstore.Store, error) {
	client, err := jobstore.NewHDFSClient(cfg.DFSNamenode)
	if err != nil {
		return nil, fmt.Errorf("connect to dfs namenode %s: %w", cfg.DFSNamenode, err)
	}
	return jobstore.New(client, cfg.DFSShredRoot), nil
}

func newLeaseStore(cfg config.Config) (*lease.Store, func(), error) {
	conn, closeConn, err := lease.NewZKConn(cfg.LeaseStoreHosts, cfg.WorkerSleep)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to lease store %v: %w", cfg.LeaseStoreHosts, err)
	}
	return lease.New(conn, cfg.LeaseStoreRoot), closeConn, nil
}

// serveMetrics starts the Prometheus/health HTTP server used by the
// worker and shredder modes when run with --loop, matching the
// teacher's background-goroutine pattern.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	log.Logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// client mode

var clientCmd = &cobra.Command{
	Use:   "client TARGET",
	Short: "Ingest a DFS file path into a new shred job",
	Args:  cobra.ExactArgs(1),
	RunE:  runClient,
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	timer := metrics.NewTimer()
	pipeline := ingest.New(store, log.WithComponent("client"))
	jobID, err := pipeline.Ingest(args[0])
	timer.ObserveDuration(metrics.IngestDuration)
	if err != nil {
		metrics.JobsFailedTotal.WithLabelValues("client").Inc()
		return err
	}

	fmt.Printf("job %s created for %s\n", jobID, args[0])
	return nil
}

// worker mode

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run one discovery/preserve/completion pass as a data node worker",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().Bool("loop", false, "Run continuously instead of performing a single pass")
	workerCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	leaseStore, closeLease, err := newLeaseStore(cfg)
	if err != nil {
		return err
	}
	defer closeLease()

	metrics.RegisterComponent("jobstore", true, "connected")
	metrics.RegisterComponent("lease", true, "connected")

	w := &coordinator.Worker{
		Store:           store,
		Lease:           leaseStore,
		Oracle:          oracle.NewExecOracle(),
		Identity:        cfg.WorkerIdentity,
		BlockSearchRoot: cfg.BlockSearchRoot,
		ShredSubdir:     cfg.LocalShredSubdir,
		LeaseDuration:   cfg.WorkerSleep,
		StallThreshold:  cfg.StallThreshold(),
		PollInterval:    30 * time.Second,
		Log:             log.WithComponent("worker").With().Str("worker_id", cfg.WorkerIdentity).Logger(),
	}

	loop, _ := cmd.Flags().GetBool("loop")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	ctx, cancel := signalContext()
	defer cancel()

	pass := func() error {
		err := w.RunOnce(ctx)
		if err != nil {
			metrics.JobsFailedTotal.WithLabelValues("worker").Inc()
		}
		return err
	}

	if !loop {
		return pass()
	}

	serveMetrics(metricsAddr)
	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

	runner := coordinator.NewRunner(cfg.WorkerSleep, pass, w.Log)
	runner.Start()
	<-ctx.Done()
	runner.Stop()
	return nil
}

// shredder mode

var shredderCmd = &cobra.Command{
	Use:   "shredder",
	Short: "Run one irreversible overwrite pass as a data node shredder",
	RunE:  runShredder,
}

func init() {
	shredderCmd.Flags().Bool("loop", false, "Run continuously instead of performing a single pass")
	shredderCmd.Flags().String("metrics-addr", "127.0.0.1:9091", "Address for the metrics/health HTTP server")
}

func runShredder(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	metrics.RegisterComponent("jobstore", true, "connected")

	s := &coordinator.Shredder{
		Store:           store,
		Shredder:        shred.NewExecShredder(cfg.ShredPasses),
		Identity:        cfg.WorkerIdentity,
		BlockSearchRoot: cfg.BlockSearchRoot,
		ShredSubdir:     cfg.LocalShredSubdir,
		Log:             log.WithComponent("shredder").With().Str("worker_id", cfg.WorkerIdentity).Logger(),
	}

	loop, _ := cmd.Flags().GetBool("loop")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	ctx, cancel := signalContext()
	defer cancel()

	pass := func() error {
		err := s.RunOnce(ctx)
		if err != nil {
			metrics.JobsFailedTotal.WithLabelValues("shredder").Inc()
		}
		return err
	}

	if !loop {
		return pass()
	}

	serveMetrics(metricsAddr)
	runner := coordinator.NewRunner(cfg.WorkerSleep, pass, s.Log)
	runner.Start()
	<-ctx.Done()
	runner.Stop()
	return nil
}
