// kirana is the voice back-office in one binary: the HTTP and websocket
// server, the reminder worker, the typed console and the operational
// helpers (migrate, seed, check).
package main

import (
	"context"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"kirana-voice/internal/ai"
	"kirana-voice/internal/config"
	"kirana-voice/internal/conversation"
	"kirana-voice/internal/core"
	"kirana-voice/internal/db"
	"kirana-voice/internal/engine"
	"kirana-voice/internal/jobs"
	"kirana-voice/internal/kvstore"
	"kirana-voice/internal/logger"
	"kirana-voice/internal/names"
	"kirana-voice/internal/notify"
	"kirana-voice/internal/objstore"
	"kirana-voice/internal/pdf"
	"kirana-voice/internal/respond"
)

func main() {
	root := &cobra.Command{
		Use:           "kirana",
		Short:         "Voice-driven back-office for a kirana shop",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	root.AddCommand(
		serveCmd(),
		workerCmd(),
		consoleCmd(),
		sayCmd(),
		migrateCmd(),
		seedCmd(),
		checkCmd(),
	)
	if err := root.Execute(); err != nil {
		zlog.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// setup loads config and initializes the global logger. Every subcommand
// starts here.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return nil, zerolog.Logger{}, err
	}
	log := zlog.Logger
	if cfg.NicknamesFile != "" {
		if err := names.LoadOverrides(cfg.NicknamesFile); err != nil {
			log.Warn().Err(err).Str("file", cfg.NicknamesFile).Msg("nickname overrides not loaded")
		}
	}
	return cfg, log, nil
}

// services is the shared wiring behind serve, worker and console.
type services struct {
	pool  *pgxpool.Pool
	rdb   *redis.Client
	queue *jobs.Queue

	customers core.CustomerService
	products  core.ProductService
	invoices  core.InvoiceService
	ledger    core.LedgerService
	reminders core.ReminderService
	summary   core.SummaryService

	conv       conversation.Store
	classifier ai.Classifier
	templater  *respond.Templater
	eng        *engine.Engine

	mailer    *notify.Mailer
	whatsapp  *notify.WhatsApp
	store     *objstore.Store
	artifacts *pdf.Artifacts

	loc *time.Location
}

func buildServices(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*services, error) {
	loc := cfg.Location()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	rdb, err := kvstore.NewClient(ctx, kvstore.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	queue := jobs.NewQueue(redisOpt(cfg), log)

	balances := core.NewBalanceCache()
	customers := core.NewCustomerService(pool, balances)
	products := core.NewProductService(pool)
	invoices := core.NewInvoiceService(pool, products, balances, loc)
	ledger := core.NewLedgerService(pool, balances)
	reminders := core.NewReminderService(pool, queue, log)
	summary := core.NewSummaryService(pool, loc)

	conv := conversation.NewStore(rdb, cfg.ShopID, cfg.ConvTTL)

	mailer, err := notify.NewMailer(notify.MailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		ShopName: cfg.ShopName,
	}, log)
	if err != nil {
		rdb.Close()
		pool.Close()
		return nil, err
	}
	whatsapp := notify.NewWhatsApp(cfg.WhatsAppToken, cfg.WhatsAppPhoneID, log)

	s := &services{
		pool:      pool,
		rdb:       rdb,
		queue:     queue,
		customers: customers,
		products:  products,
		invoices:  invoices,
		ledger:    ledger,
		reminders: reminders,
		summary:   summary,
		conv:      conv,
		mailer:    mailer,
		whatsapp:  whatsapp,
		loc:       loc,
	}

	// The object store is optional: a shop without S3/minio still bills,
	// it just keeps no PDFs and no audio archive.
	if cfg.S3Endpoint != "" {
		store, err := objstore.New(objstore.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		}, log)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.store = store
		s.artifacts = pdf.NewArtifacts(store, pdf.Shop{
			Name:  cfg.ShopName,
			Phone: cfg.ShopPhone,
			GSTIN: cfg.ShopGSTIN,
		}, log)
	} else {
		log.Warn().Msg("S3_ENDPOINT not set, invoice PDFs and audio archive disabled")
	}

	var artifacts engine.ArtifactStore
	if s.artifacts != nil {
		artifacts = s.artifacts
	}
	s.eng = engine.New(engine.Deps{
		Customers:  customers,
		Products:   products,
		Invoices:   invoices,
		Ledger:     ledger,
		Reminders:  reminders,
		Summary:    summary,
		Queue:      queue,
		Conv:       conv,
		Mailer:     mailer,
		WhatsApp:   whatsapp,
		Artifacts:  artifacts,
		AdminEmail: cfg.AdminEmail,
		Location:   loc,
		Log:        log,
	})

	s.classifier = ai.NewClassifier(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel)
	responder := ai.NewResponder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel, cfg.ShopName)
	s.templater = respond.New(responder, loc, log)

	return s, nil
}

func (s *services) Close() {
	if s.queue != nil {
		s.queue.Close()
	}
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
