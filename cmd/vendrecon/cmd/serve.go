package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"vending-reconciliation-service/cmd/vendrecon/config"
	"vending-reconciliation-service/internal/engine"
	"vending-reconciliation-service/internal/notify"
	"vending-reconciliation-service/internal/server"
	"vending-reconciliation-service/internal/store"
	"vending-reconciliation-service/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the serve command
var (
	serveAddr  string
	webhookURL string
	sweepSpec  string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation HTTP API",
	Long: `Serve exposes the reconciliation engine over HTTP, backed by the MySQL
store. It also runs a scheduled sweep that reconciles the previous day and
pushes shortage alerts to the configured webhook.

Database connection comes from DB_USER, DB_PASSWORD, DB_HOST, DB_PORT and
DB_NAME environment variables (a .env file is honored).

Examples:
  vendrecon serve --addr :8080
  vendrecon serve --addr :8080 --webhook-url https://hooks.example.com/cash-alerts
  vendrecon serve --sweep-schedule "0 6 * * *"`,

	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "shortage alert webhook endpoint")
	serveCmd.Flags().StringVar(&sweepSpec, "sweep-schedule", "0 6 * * *", "cron spec for the daily shortage sweep (empty disables)")

	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("webhook-url", serveCmd.Flags().Lookup("webhook-url"))
	viper.BindPFlag("sweep-schedule", serveCmd.Flags().Lookup("sweep-schedule"))
}

func runServe(cmd *cobra.Command, args []string) error {
	serveAddr = viper.GetString("addr")
	webhookURL = viper.GetString("webhook-url")
	sweepSpec = viper.GetString("sweep-schedule")

	log := newCommandLogger()

	serviceConfig, err := config.LoadServiceConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		serviceConfig.Server.Addr = serveAddr
	}
	if webhookURL != "" {
		serviceConfig.Notify.WebhookURL = webhookURL
	}

	st, err := store.Open(store.Config{
		DSN:             serviceConfig.Database.DSN,
		MaxOpenConns:    serviceConfig.Database.MaxOpenConns,
		MaxIdleConns:    serviceConfig.Database.MaxIdleConns,
		ConnMaxLifetime: serviceConfig.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	eng, err := engine.NewEngine(st, st, st, st, log)
	if err != nil {
		return err
	}

	var opts []server.Option
	var gateway notify.Gateway
	if serviceConfig.Notify.WebhookURL != "" {
		gateway, err = notify.NewWebhookGateway(serviceConfig.Notify.WebhookURL, log)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithNotifier(gateway))
	}

	srv, err := server.NewServer(server.Config{
		Addr:             serviceConfig.Server.Addr,
		AllowedOrigins:   serviceConfig.Server.AllowedOrigins,
		ReadTimeout:      serviceConfig.Server.ReadTimeout,
		WriteTimeout:     serviceConfig.Server.WriteTimeout,
		ShutdownTimeout:  serviceConfig.Server.ShutdownTimeout,
		EnableRequestLog: true,
	}, eng, log, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sweepSpec != "" && gateway != nil {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(sweepSpec, func() {
			sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()
			if err := runShortageSweep(sweepCtx, eng, gateway, log); err != nil {
				log.WithError(err).Error("shortage sweep failed")
			}
		}); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.WithField("schedule", sweepSpec).Info("shortage sweep scheduled")
	}

	return srv.Run(ctx)
}

// runShortageSweep reconciles the previous UTC day and pushes shortage
// alerts past the configured threshold.
func runShortageSweep(ctx context.Context, eng *engine.Engine, gateway notify.Gateway, log logger.Logger) error {
	now := time.Now().UTC()
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayStart := dayEnd.AddDate(0, 0, -1)

	result, err := eng.ComputeReconciliation(ctx, &engine.ReconciliationRequest{
		From: dayStart,
		To:   dayEnd,
	})
	if err != nil {
		return err
	}

	threshold, err := eng.Settings().ShortageAlertThreshold(ctx)
	if err != nil {
		return err
	}

	alerts := notify.FilterShortageAlerts(result.Items, threshold)
	log.WithFields(logger.Fields{
		"window_start": dayStart.Format("2006-01-02"),
		"periods":      result.Summary.ItemCount,
		"alerts":       len(alerts),
	}).Info("shortage sweep complete")

	return gateway.SendAlerts(ctx, alerts)
}
