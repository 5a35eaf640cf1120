package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Farewellez/matcha-schedule/pkg/config"
)

func newInitCmd() *cobra.Command {
	var force bool
	var machines int
	var driver string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new Matcha Schedule configuration",
		Long: `Create a configuration file in the project root with sensible
defaults. Edit it afterwards to point at your database and tune the
priority weights.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force, machines, driver)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")
	cmd.Flags().IntVarP(&machines, "machines", "m", 2, "number of production machines")
	cmd.Flags().StringVarP(&driver, "store", "s", "memory", "store driver (memory, postgres)")

	return cmd
}

func runInit(force bool, machines int, driver string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists. Use --force to overwrite")
	}

	manager := config.NewManager()
	cfg := manager.GetDefaultConfig()
	cfg.Scheduling.MachineCount = machines
	cfg.Store.Driver = driver
	if driver == "postgres" {
		cfg.Store.DSN = "host=localhost user=matcha password=matcha dbname=matcha port=5432"
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printSuccess(fmt.Sprintf("Created configuration at %s", configPath))
	printInfo("Edit the configuration to set your database DSN and priority weights")

	return nil
}
