package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kirana-voice/internal/ai"
	"kirana-voice/internal/db"
	"kirana-voice/internal/kvstore"
	"kirana-voice/internal/objstore"
)

// checkCmd verifies the deployment end to end: Postgres, Redis, the object
// store bucket and a live classifier round-trip. Meant for first install and
// for "kuch kaam nahi kar raha" support calls.
func checkCmd() *cobra.Command {
	var skipLLM bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify database, Redis, object store and classifier connectivity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			failed := false

			pool, err := db.NewPool(ctx, cfg.DatabaseURL)
			if err != nil {
				fmt.Printf("postgres      FAIL  %v\n", err)
				failed = true
			} else {
				var applied int
				if err := pool.QueryRow(ctx,
					"SELECT count(*) FROM schema_migrations").Scan(&applied); err != nil {
					fmt.Printf("postgres      WARN  connected, but schema_migrations missing — run `kirana migrate`\n")
				} else {
					fmt.Printf("postgres      OK    %d migrations applied\n", applied)
				}
				pool.Close()
			}

			rdb, err := kvstore.NewClient(ctx, kvstore.Options{
				Addr:     cfg.RedisAddr(),
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			if err != nil {
				fmt.Printf("redis         FAIL  %v\n", err)
				failed = true
			} else {
				fmt.Printf("redis         OK    %s\n", cfg.RedisAddr())
				rdb.Close()
			}

			if cfg.S3Endpoint == "" {
				fmt.Printf("object store  SKIP  S3_ENDPOINT not set\n")
			} else if store, err := objstore.New(objstore.Config{
				Endpoint:  cfg.S3Endpoint,
				AccessKey: cfg.S3AccessKey,
				SecretKey: cfg.S3SecretKey,
				Bucket:    cfg.S3Bucket,
				UseSSL:    cfg.S3UseSSL,
			}, log); err != nil {
				fmt.Printf("object store  FAIL  %v\n", err)
				failed = true
			} else if err := store.EnsureBucket(ctx); err != nil {
				fmt.Printf("object store  FAIL  %v\n", err)
				failed = true
			} else {
				fmt.Printf("object store  OK    bucket %s\n", cfg.S3Bucket)
			}

			if skipLLM {
				fmt.Printf("classifier    SKIP  --skip-llm\n")
			} else {
				classifier := ai.NewClassifier(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel)
				cls, err := classifier.Classify(ctx, "sharma ji ka kitna baki hai", "")
				if err != nil {
					fmt.Printf("classifier    FAIL  %v\n", err)
					failed = true
				} else {
					fmt.Printf("classifier    OK    model %s → %s\n", cfg.LLMModel, cls.Tasks[0].Intent)
				}
			}

			if failed {
				return fmt.Errorf("one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "skip the live classifier round-trip")
	return cmd
}
