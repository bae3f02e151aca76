package cmd

import (
	"fmt"
	"os"

	"senior-connect/common/logger"
	"senior-connect/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "senior-connect"

var (
	// rulesPath YAML 规则文件
	rulesPath string
	// envFile .env 文件
	envFile string

	rootCmd = &cobra.Command{
		Use:   "senior-connect",
		Short: "Correlate home sensor events into caregiver alerts.",
		Long: `Subscribes to the sensor bus, tracks room occupancy, bathroom inactivity,
bedroom vital signs and fall signatures, and delivers alerts and the
per-sensor log to the configured sinks.

Running without a subcommand is the same as "senior-connect run".`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCmd.RunE(cmd, args)
		},
	}
)

// Execute 执行 CLI，出错时以非零状态退出
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // cobra 约定
func init() {
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "path to YAML rules file (overrides RULES_FILE)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to .env file loaded before reading the environment")

	rootCmd.AddCommand(runCmd, replayCmd)
}

// loadConfig 加载配置并初始化日志
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile, rulesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}

	return cfg, log, nil
}
