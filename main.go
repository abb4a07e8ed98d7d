package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maplewood-dwh/snapcdc/internal/blobstore"
	"github.com/maplewood-dwh/snapcdc/internal/config"
	"github.com/maplewood-dwh/snapcdc/internal/db"
	"github.com/maplewood-dwh/snapcdc/internal/engine"
	"github.com/maplewood-dwh/snapcdc/internal/locking"
	"github.com/maplewood-dwh/snapcdc/internal/logging"
	"github.com/maplewood-dwh/snapcdc/internal/publish"
	"github.com/maplewood-dwh/snapcdc/internal/secrets"
	"github.com/maplewood-dwh/snapcdc/internal/utils"
	"github.com/maplewood-dwh/snapcdc/pkg/cdc"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "snapcdc",
	Short: "snapcdc - hash-based change data capture for SQL Server",
	Long: `Detects inserts, updates and deletes in SQL Server tables by comparing
row hashes against blob-stored baselines, writing change logs for
downstream pipelines and streaming them to Service Bus.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "snapcdc.yaml", "config file path")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("snapcdc v0.1.0")
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one CDC run across all configured tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := executeRun(ctx, cfg)
		if err != nil {
			return err
		}
		return printSummary(summary)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run repeatedly on an interval, backing off while quiet",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		interval, _ := cfg.Run.GetWatchInterval()
		maxInterval, _ := cfg.Run.GetMaxWatchInterval()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logging.GetLogger()
		backoff := utils.NewBackoff(interval, maxInterval)
		for {
			summary, err := executeRun(ctx, cfg)
			if err != nil {
				log.Error("Run failed", "error", err)
				backoff.Increase()
			} else {
				if err := printSummary(summary); err != nil {
					return err
				}
				if summary.TotalChanges() > 0 {
					backoff.Reset()
				} else {
					backoff.Increase()
				}
			}

			log.Info("Next run scheduled", "in", backoff.Current())
			select {
			case <-ctx.Done():
				log.Info("Shutting down watch loop")
				return nil
			case <-time.After(backoff.Current()):
			}
		}
	},
}

// executeRun wires the collaborators together and drives one full run.
// Returned errors are setup failures; per-table failures live inside the
// returned summary.
func executeRun(ctx context.Context, cfg *config.Config) (*cdc.RunSummary, error) {
	log := logging.GetLogger()

	resolver, err := secrets.NewResolver(cfg.KeyVault.URL)
	if err != nil {
		log.Warn("Key Vault unavailable, using local connection strings", "error", err)
		resolver, _ = secrets.NewResolver("")
	}
	sqlConnStr := resolver.Resolve(ctx, secrets.SecretSQLConnStr, cfg.Database.ConnectionString)
	blobConnStr := resolver.Resolve(ctx, secrets.SecretBlobConnStr, cfg.Blob.ConnectionString)

	conn, err := db.Connect(sqlConnStr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tables := make([]engine.TableConfig, 0, len(cfg.Tables))
	for _, t := range cfg.Tables {
		tables = append(tables, engine.TableConfig{
			Name:            t.Name,
			PrimaryKey:      t.PrimaryKey,
			ExcludedColumns: t.ExcludedColumns,
		})
	}
	if err := db.VerifyTables(ctx, conn, cfg.Database.Schema, tables); err != nil {
		return nil, fmt.Errorf("invalid table configuration: %w", err)
	}

	store, err := blobstore.New(blobConnStr, cfg.Blob.Container)
	if err != nil {
		return nil, err
	}

	serverName, err := utils.ExtractServerName(sqlConnStr)
	if err != nil {
		log.Warn("Could not determine server name for run lock", "error", err)
		serverName = "default"
	}
	locker, err := locking.NewBlobLocker(blobConnStr, cfg.Blob.Container, locking.RunLockName(serverName))
	if err != nil {
		return nil, err
	}
	leaseID, err := locker.AcquireLock(ctx)
	if err != nil {
		return nil, err
	}
	if leaseID == "" {
		return nil, errors.New("another run holds the run lock, skipping")
	}
	renewCtx, stopRenewal := context.WithCancel(ctx)
	defer stopRenewal()
	locker.StartLockRenewal(renewCtx)
	defer func() {
		if err := locker.ReleaseLock(context.Background()); err != nil {
			log.Error("Failed to release run lock", "error", err)
		}
	}()

	var streamPub cdc.StreamPublisher
	if cfg.ServiceBus.ConnectionString != "" {
		publisher, err := publish.New(cfg.ServiceBus.ConnectionString, cfg.ServiceBus.Queue, cfg.ServiceBus.SKU)
		if err != nil {
			// Streaming is best-effort relative to the durable change
			// log; a missing publisher must not block the run.
			log.Error("Service Bus unavailable, streaming disabled for this run", "error", err)
		} else {
			streamPub = publisher
			defer publisher.Close(context.Background())
		}
	}

	retryDelay, _ := cfg.Run.GetRetryDelay()
	extractor := db.NewSnapshotExtractor(conn, cfg.Database.Schema)
	emitter := engine.NewEmitter(store, streamPub)
	runner := engine.NewTableRunner(extractor, store, emitter, engine.RetryPolicy{
		MaxAttempts: cfg.Run.RetryAttempts,
		Delay:       retryDelay,
	})
	orchestrator := engine.NewOrchestrator(runner, store, tables)

	return orchestrator.Run(ctx), nil
}

// printSummary emits the summary as a single JSON document on stdout for
// the invoking scheduler to capture.
func printSummary(summary *cdc.RunSummary) error {
	out, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
