package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"senior-connect/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the correlator until SIGINT or SIGTERM.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		// 优雅关闭
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		svc, err := service.NewSeniorConnectService(ctx, cfg, log)
		if err != nil {
			log.Error("Failed to create service", zap.Error(err))
			return err
		}
		defer svc.Stop()

		if err := svc.Start(ctx); err != nil {
			log.Error("Service error", zap.Error(err))
			return err
		}

		log.Info("Senior Connect service stopped")
		return nil
	},
}
