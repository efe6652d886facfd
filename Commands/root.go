package Commands

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"AviCRM/Config"

	"github.com/spf13/cobra"
)

var (
	envFile string
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "avicrm",
	Short: "AviCRM task sync backend",
	Long:  `AviCRM serves task assignment for the admin dashboard and the mobile client, keeping each employee's task dashboard and notification profile in sync.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logFile != "" {
			setupLogging(logFile)
		}
	},
	// No RunE - defaults to showing help when no subcommand is provided
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Env file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also append application logs to this file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(tokenCmd)
}

func loadConfig() *Config.Config {
	return Config.Load(envFile)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging tees the standard logger into path.
func setupLogging(path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("Error creating logs directory: %v\n", err)
		return
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("Error opening log file: %v\n", err)
		return
	}

	log.SetOutput(io.MultiWriter(os.Stderr, file))
	log.SetFlags(log.Ldate | log.Ltime)
}
