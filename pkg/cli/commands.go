package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Farewellez/matcha-schedule/pkg/config"
	"github.com/Farewellez/matcha-schedule/pkg/daemon"
	"github.com/Farewellez/matcha-schedule/pkg/process"
	"github.com/Farewellez/matcha-schedule/pkg/state"
	"github.com/Farewellez/matcha-schedule/pkg/types"
)

func newRunCmd() *cobra.Command {
	var demo bool
	var logFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduling loop",
		Long: `Start the scheduler and poll for ready orders until interrupted.
Each polling cycle ingests new orders, rescores the queue against current
ingredient stock, sweeps finished machines and assigns free ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(demo, logFile)
		},
	}

	cmd.Flags().BoolVar(&demo, "demo", false, "use an in-memory store seeded with sample orders")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to a file instead of stdout")

	return cmd
}

func newCycleCmd() *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run a single scheduling cycle and exit",
		Long:  `Execute one ingest, rescore, sweep and assign pass, then exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingleCycle(demo)
		},
	}

	cmd.Flags().BoolVar(&demo, "demo", false, "use an in-memory store seeded with sample orders")

	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running scheduler daemon",
		Long:  `Signal the daemon recorded in the PID file to shut down gracefully.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop()
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show machine status",
		Long:  `Display the persisted state of all production machines.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long:  `Check that the configuration file parses and its values are usable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Matcha Schedule",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("🍵 Matcha Schedule v%s\n", version)
		},
	}
}

// Implementation functions

func runScheduler(demo bool, logFile string) error {
	printInfo("Starting scheduler...")

	mgr := daemon.NewManager(daemon.Config{
		ProjectRoot: projectRoot,
		ConfigPath:  resolveConfigPath(demo),
		LogFile:     logFile,
		LogLevel:    verbosity,
		Demo:        demo,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mgr.StartWithContext(ctx); err != nil {
		return err
	}

	err := mgr.Wait()

	shutdownCtx := context.Background()
	mgr.StopWithContext(shutdownCtx)

	if err != nil && err != context.Canceled {
		return err
	}
	printSuccess("Scheduler stopped")
	return nil
}

func runSingleCycle(demo bool) error {
	mgr := daemon.NewManager(daemon.Config{
		ProjectRoot: projectRoot,
		ConfigPath:  resolveConfigPath(demo),
		LogLevel:    verbosity,
		Demo:        demo,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mgr.RunOnce(ctx); err != nil {
		return err
	}

	printSuccess("Cycle complete")
	return nil
}

func runStop() error {
	pidFile := filepath.Join(projectRoot, ".matcha-schedule", "daemon.pid")

	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			printWarning("No scheduler daemon is running.")
			return nil
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		os.Remove(pidFile)
		return fmt.Errorf("removed unreadable PID file: %w", err)
	}

	info, err := process.GetProcessInfo(pid)
	if err != nil || !info.IsRunning {
		os.Remove(pidFile)
		printWarning(fmt.Sprintf("Daemon %d is not running; removed stale PID file.", pid))
		return nil
	}

	if err := process.KillProcess(pid); err != nil {
		return fmt.Errorf("failed to stop daemon %d: %w", pid, err)
	}

	os.Remove(pidFile)
	printSuccess(fmt.Sprintf("Stopped scheduler daemon (PID %d)", pid))
	return nil
}

func runStatus() error {
	sm := state.NewManager(projectRoot, nil)

	states, err := sm.DiscoverStates()
	if err != nil {
		return fmt.Errorf("failed to discover machine states: %w", err)
	}

	if len(states) == 0 {
		printWarning("No machine state found. Run 'matcha-schedule run' to start the scheduler.")
		return nil
	}

	ids := make([]int, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MACHINE\tSTATUS\tORDER\tFINISH ETA\tBATCH")
	fmt.Fprintln(w, "-------\t------\t-----\t----------\t-----")

	for _, id := range ids {
		snap := states[id]

		statusColor := color.GreenString(string(snap.Status))
		if snap.Status == types.MachineStatusBusy {
			statusColor = color.YellowString(string(snap.Status))
		}

		orderRef := "-"
		eta := "-"
		batch := "-"
		if snap.Status == types.MachineStatusBusy {
			orderRef = fmt.Sprintf("#%d", snap.CurrentOrderID)
			eta = snap.EstimatedFinish.Format("15:04:05")
			batch = snap.BatchRef
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", id, statusColor, orderRef, eta, batch)
	}

	w.Flush()

	if pidInUse() {
		printInfo("Scheduler daemon is running")
	}
	return nil
}

func runValidate() error {
	configPath := getConfigPath()

	manager := config.NewManager()
	cfg, err := manager.LoadConfig(configPath)
	if err != nil {
		printError(fmt.Sprintf("Configuration invalid: %v", err))
		return err
	}
	manager.ApplyDefaults(cfg)

	printSuccess(fmt.Sprintf("Configuration valid: %d machines, %ds polling, %s store",
		cfg.Scheduling.MachineCount,
		cfg.Scheduling.PollingIntervalSecs,
		cfg.Store.Driver))
	return nil
}

func resolveConfigPath(demo bool) string {
	configPath := getConfigPath()
	if demo {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			// Demo mode runs fine on built-in defaults.
			return ""
		}
	}
	return configPath
}

func pidInUse() bool {
	pidFile := filepath.Join(projectRoot, ".matcha-schedule", "daemon.pid")
	_, err := os.Stat(pidFile)
	return err == nil
}
