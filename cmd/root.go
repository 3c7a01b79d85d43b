package cmd

import (
	"fmt"

	"github.com/psds-microservice/installation-service/internal/config"
	"github.com/psds-microservice/installation-service/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "installation-service"

var rootCmd = &cobra.Command{
	Use:          serviceName,
	Short:        "Installation scheduling portal: CRM sync, partner scheduling, technician updates",
	RunE:         runAPI,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(resyncCRMCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}

// setup loads and validates the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}
