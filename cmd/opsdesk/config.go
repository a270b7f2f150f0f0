package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	configValidateCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/opsdesk/opsdesk.yaml", "Path to configuration file")
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  Database path: %s\n", cfg.Database.Path)
	fmt.Printf("  SMTP host: %s\n", cfg.SMTP.Host)
	fmt.Printf("  Metrics enabled: %v\n", cfg.Metrics.Enabled)
	fmt.Printf("  Log level: %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)

	return nil
}
