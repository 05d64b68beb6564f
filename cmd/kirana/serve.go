package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kirana-voice/internal/adapters/voice"
	"kirana-voice/internal/adapters/web"
	"kirana-voice/internal/speech"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
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

			// Speech providers are best-effort: a missing API key degrades the
			// socket to text mode instead of refusing to boot.
			speechCfg := speech.Config{
				STTProvider:      cfg.STTProvider,
				TTSProvider:      cfg.TTSProvider,
				DeepgramAPIKey:   cfg.DeepgramAPIKey,
				ElevenLabsAPIKey: cfg.ElevenLabsAPIKey,
				ElevenLabsVoice:  cfg.ElevenLabsVoice,
				OpenAIAPIKey:     cfg.OpenAIAPIKey,
				OpenAIBaseURL:    cfg.OpenAIBaseURL,
				OpenAIVoice:      cfg.TTSOpenAIVoice,
				Language:         "hi",
				SampleRate:       16000,
			}
			stt, err := speech.NewTranscriber(speechCfg, log)
			if err != nil {
				log.Warn().Err(err).Msg("speech-to-text disabled")
			}
			tts, err := speech.NewSynthesizer(speechCfg, log)
			if err != nil {
				log.Warn().Err(err).Msg("text-to-speech disabled")
			}
			defer func() {
				if stt != nil {
					stt.Close()
				}
				if tts != nil {
					tts.Close()
				}
			}()

			var archive voice.AudioStore
			if svcs.store != nil {
				archive = svcs.store
			}
			voiceCtrl := voice.NewController(voice.Deps{
				Engine:      svcs.eng,
				Classifier:  svcs.classifier,
				Renderer:    svcs.templater,
				Conv:        svcs.conv,
				STT:         stt,
				TTS:         tts,
				Archive:     archive,
				STTProvider: cfg.STTProvider,
				TTSProvider: cfg.TTSProvider,
				Workers:     cfg.VoiceWorkers,
				Log:         log,
			})

			handler := web.NewHandler(web.Deps{
				Customers:      svcs.customers,
				Products:       svcs.products,
				Invoices:       svcs.invoices,
				Ledger:         svcs.ledger,
				Reminders:      svcs.reminders,
				Summary:        svcs.summary,
				Voice:          voiceCtrl,
				JWTSecret:      cfg.JWTSecret,
				OperatorPIN:    cfg.OperatorPIN,
				AdminPIN:       cfg.AdminPIN,
				AllowedOrigins: cfg.AllowedOrigins,
				Location:       svcs.loc,
				Log:            log,
			})

			srv := &http.Server{
				Addr:              ":" + cfg.ServerPort,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("port", cfg.ServerPort).Str("shop", cfg.ShopName).Msg("server starting")
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
