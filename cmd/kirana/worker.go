package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kirana-voice/internal/jobs"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the reminder and daily-summary worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svcs, err := buildServices(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer svcs.Close()

			worker := jobs.NewWorker(jobs.WorkerConfig{
				Redis:       redisOpt(cfg),
				Reminders:   svcs.reminders,
				Customers:   svcs.customers,
				Summary:     svcs.summary,
				WhatsApp:    svcs.whatsapp,
				Mailer:      svcs.mailer,
				AdminEmail:  cfg.AdminEmail,
				ShopName:    cfg.ShopName,
				SummaryHour: cfg.SummaryHour,
				Location:    svcs.loc,
				Log:         log,
			})
			log.Info().Int("summary_hour", cfg.SummaryHour).Msg("worker starting")
			return worker.Run(ctx)
		},
	}
}
