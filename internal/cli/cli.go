// ============================================================================
// missiond CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra-based command line interface for the mission daemon
//
// Command Structure:
//   missiond                        # Root command
//   ├── run                         # Start the mission daemon
//   │   └── --config, -c            # Specify config file
//   ├── mission                     # Mission operations (against a daemon)
//   │   └── create                  # Create a mission from a hosts file
//   │       ├── --file, -f          # Hosts JSON file
//   │       ├── --id                # Mission identifier
//   │       └── --type              # Planner type (default, recon)
//   ├── status <mission-id>         # Show mission status
//   │   └── --detail                # Include per-host facts and history
//   ├── cancel <mission-id>         # Cancel a running mission
//   ├── --version                   # Display version information
//   └── --help                      # Display help information
//
// Configuration Management:
//   Uses YAML format config file (default: configs/default.yaml)
//   Configuration items include:
//   - executors: worker count, task timeout, categories, procedure dir
//   - store: backend selection (memory, file, sqlite, consul) and path
//   - journal: result audit log
//   - server: HTTP API listen port
//   - metrics: Prometheus monitoring configuration
//
// run Command:
//   Starts the complete daemon:
//   1. Load config file
//   2. Open the mission store and journal
//   3. Start executor pools for each configured category
//   4. Start the HTTP API (and /metrics) server
//   5. Listen for system signals (SIGINT, SIGTERM)
//   6. Gracefully shut down
//
// Signal Handling:
//   run command captures SIGINT and SIGTERM; shutdown cancels all
//   running missions, stops executor pools, then closes shared
//   infrastructure.
//
// ============================================================================

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rangeops/missiond/internal/bus"
	"github.com/rangeops/missiond/internal/coordinator"
	"github.com/rangeops/missiond/internal/executor"
	"github.com/rangeops/missiond/internal/journal"
	"github.com/rangeops/missiond/internal/metrics"
	"github.com/rangeops/missiond/internal/planner"
	"github.com/rangeops/missiond/internal/queue"
	"github.com/rangeops/missiond/internal/remoteexec"
	"github.com/rangeops/missiond/internal/server"
	"github.com/rangeops/missiond/internal/store"
)

var log = slog.Default()

// Config represents the complete daemon configuration structure.
// Maps config file fields through YAML tags.
type Config struct {
	Executors struct {
		WorkerCount        int      `yaml:"worker_count"`
		TaskTimeoutSeconds int      `yaml:"task_timeout_seconds"`
		Categories         []string `yaml:"categories"`
		ProcedureDir       string   `yaml:"procedure_dir"`
	} `yaml:"executors"`

	Store struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"store"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

func (c *Config) applyDefaults() {
	if c.Executors.WorkerCount <= 0 {
		c.Executors.WorkerCount = 4
	}
	if c.Executors.TaskTimeoutSeconds <= 0 {
		c.Executors.TaskTimeoutSeconds = 60
	}
	if len(c.Executors.Categories) == 0 {
		c.Executors.Categories = []string{"linux", "windows", "mac"}
	}
	if c.Executors.ProcedureDir == "" {
		c.Executors.ProcedureDir = "procedures"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

var (
	configFile string
	serverAddr string
)

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "missiond",
		Short: "missiond: a mission orchestration daemon",
		Long: `missiond orchestrates multi-host missions:
- Rule-driven task planning per host
- Category-matched executor pools
- Durable mission state snapshots
- Prometheus metrics`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "daemon API address")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildMissionCommand())
	rootCmd.AddCommand(buildStatusCommand())
	rootCmd.AddCommand(buildCancelCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the mission daemon",
		Long:  "Start the mission store, executor pools and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}
}

func runDaemon() error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.Info("starting missiond", "config", configFile,
		"workers", cfg.Executors.WorkerCount, "categories", cfg.Executors.Categories)

	missionStore, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open mission store: %w", err)
	}
	defer missionStore.Close()

	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		jnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer jnl.Close()
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(nil)
	}

	taskQueue := queue.NewMemoryQueue()
	defer taskQueue.Close()
	eventBus := bus.NewMemoryBus()
	defer eventBus.Close()

	coord := coordinator.New(coordinator.Deps{
		Store:    missionStore,
		Queue:    taskQueue,
		Bus:      eventBus,
		Planners: planner.NewRegistry(),
		Journal:  jnl,
		Metrics:  collector,
	})
	defer coord.Close()

	// One pool per category so each procedure family only ever sees
	// tasks it can run.
	runner := remoteexec.NewScriptRunner(cfg.Executors.ProcedureDir)
	runner.Timeout = time.Duration(cfg.Executors.TaskTimeoutSeconds) * time.Second
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pools := make([]*executor.Pool, 0, len(cfg.Executors.Categories))
	for _, category := range cfg.Executors.Categories {
		pool := executor.NewPool(executor.New(category, runner), taskQueue, eventBus)
		pool.Start(ctx, cfg.Executors.WorkerCount)
		pools = append(pools, pool)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: server.New(coord)}
	go func() {
		log.Info("HTTP API listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("missiond started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("received shutdown signal, stopping gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", "error", err)
	}

	coord.Close()
	for _, pool := range pools {
		pool.Stop()
	}

	log.Info("missiond stopped")
	return nil
}

func buildMissionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mission",
		Short: "Mission operations",
	}
	cmd.AddCommand(buildMissionCreateCommand())
	return cmd
}

func buildMissionCreateCommand() *cobra.Command {
	var hostsFile string
	var missionID string
	var missionType string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a mission from a hosts JSON file",
		Long:  "Read host definitions from a JSON file and start a mission on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return createMission(hostsFile, missionID, missionType)
		},
	}

	cmd.Flags().StringVarP(&hostsFile, "file", "f", "", "JSON file containing host definitions")
	cmd.Flags().StringVar(&missionID, "id", "", "mission identifier")
	cmd.Flags().StringVar(&missionType, "type", "default", "planner type")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("id")

	return cmd
}

func createMission(hostsFile, missionID, missionType string) error {
	data, err := os.ReadFile(hostsFile)
	if err != nil {
		return fmt.Errorf("failed to read hosts file: %w", err)
	}

	var hosts []coordinator.HostSpec
	if err := json.Unmarshal(data, &hosts); err != nil {
		return fmt.Errorf("failed to parse hosts file: %w", err)
	}

	body, err := json.Marshal(server.CreateMissionRequest{
		MissionID:   missionID,
		MissionType: missionType,
		Hosts:       hosts,
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	if _, err := apiPost("/api/missions", body); err != nil {
		return err
	}
	fmt.Printf("mission %s started (%d hosts)\n", missionID, len(hosts))
	return nil
}

func buildStatusCommand() *cobra.Command {
	var detail bool

	cmd := &cobra.Command{
		Use:   "status <mission-id>",
		Short: "Show mission status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(args[0], detail)
		},
	}

	cmd.Flags().BoolVar(&detail, "detail", false, "include per-host facts and task history")

	return cmd
}

func showStatus(missionID string, detail bool) error {
	path := fmt.Sprintf("/api/missions/%s/status", missionID)
	if detail {
		path = fmt.Sprintf("/api/missions/%s/detail", missionID)
	}

	body, err := apiGet(path)
	if err != nil {
		return err
	}

	var status coordinator.Status
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("failed to parse status response: %w", err)
	}

	fmt.Printf("Mission:    %s (type %s)\n", status.MissionID, status.MissionType)
	fmt.Printf("Hosts:      %d\n", status.TotalHosts)
	fmt.Printf("Pending:    %d\n", status.PendingTasks)
	fmt.Printf("Completed:  %d\n", status.CompletedTasks)
	fmt.Printf("Quiescent:  %v\n", status.Quiescent)
	fmt.Printf("Cancelled:  %v\n", status.Cancelled)
	for id, host := range status.Hosts {
		fmt.Printf("  %s: status=%s failures=%d locked=%v\n",
			id, host.Status, host.FailureCount, host.Locked)
		if detail && len(host.Facts) > 0 {
			facts, _ := json.Marshal(host.Facts)
			fmt.Printf("    facts: %s\n", facts)
		}
	}
	return nil
}

func buildCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <mission-id>",
		Short: "Cancel a running mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/missions/%s/cancel", args[0])
			if _, err := apiPost(path, nil); err != nil {
				return err
			}
			fmt.Printf("mission %s cancelled\n", args[0])
			return nil
		},
	}
}

func apiGet(path string) ([]byte, error) {
	resp, err := http.Get(serverAddr + path)
	if err != nil {
		return nil, fmt.Errorf("failed to contact daemon: %w", err)
	}
	return readAPIResponse(resp)
}

func apiPost(path string, body []byte) ([]byte, error) {
	resp, err := http.Post(serverAddr+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to contact daemon: %w", err)
	}
	return readAPIResponse(resp)
}

func readAPIResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("daemon returned %s: %s", resp.Status, apiErr.Error)
		}
		return nil, fmt.Errorf("daemon returned %s", resp.Status)
	}
	return data, nil
}

// LoadConfig reads and parses a YAML config file, applying defaults
// for unset fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}
