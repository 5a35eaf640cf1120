// Package cli provides the command-line interface for Matcha Schedule
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	projectRoot string
	verbosity   string
	version     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "matcha-schedule",
	Short: "Priority-driven production scheduling for food orders",
	Long: `🍵 Matcha Schedule - Deadline-aware production scheduling

Matcha Schedule polls for customer orders that are ready for production,
ranks them by deadline pressure, quantity and ingredient stock levels,
and assigns them to free production machines.`,

	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("🍵 Matcha Schedule v%s\n", version)
			return
		}
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v

	initializeRootCommand()

	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags.
// Explicit setup instead of init() keeps the command tree testable.
func initializeRootCommand() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: matcha.config.json)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")

	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCycleCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(projectRoot)
		viper.SetConfigName("matcha.config")
		viper.SetConfigType("json")
	}

	viper.SetEnvPrefix("MATCHA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbosity == "debug" {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}
}

// Helper functions

func printSuccess(message string) {
	fmt.Printf("🍵 %s %s\n", color.GreenString("[MatchaSchedule]"), message)
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "🍵 %s %s\n", color.RedString("[MatchaSchedule]"), message)
}

func printInfo(message string) {
	fmt.Printf("🍵 %s %s\n", color.CyanString("[MatchaSchedule]"), message)
}

func printWarning(message string) {
	fmt.Printf("🍵 %s %s\n", color.YellowString("[MatchaSchedule]"), message)
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(projectRoot, "matcha.config.json")
}
