package main

import (
	"bufio"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"kirana-voice/internal/adapters/console"
	"kirana-voice/internal/config"
)

func consoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive typed console (the voice flow without a microphone)",
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

			console.Run(ctx, consoleDeps(cfg, svcs, log), bufio.NewReader(os.Stdin))
			return nil
		},
	}
}

func sayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "say <utterance>",
		Short: "Run a single Hinglish utterance and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			svcs, err := buildServices(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer svcs.Close()

			utterance := strings.TrimSpace(strings.Join(args, " "))
			if utterance == "" {
				return errors.New("nothing to say")
			}
			console.RunOnce(ctx, consoleDeps(cfg, svcs, log), utterance)
			return nil
		},
	}
}

func consoleDeps(cfg *config.Config, svcs *services, log zerolog.Logger) console.Deps {
	return console.Deps{
		Engine:     svcs.eng,
		Classifier: svcs.classifier,
		Renderer:   svcs.templater,
		Conv:       svcs.conv,
		Customers:  svcs.customers,
		Products:   svcs.products,
		Reminders:  svcs.reminders,
		Summary:    svcs.summary,
		ShopName:   cfg.ShopName,
		Location:   svcs.loc,
		Log:        log,
	}
}
