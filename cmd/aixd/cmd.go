package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aixlab/aix/assistant"
	"github.com/aixlab/aix/config"
	"github.com/aixlab/aix/embedding"
	"github.com/aixlab/aix/errors"
	"github.com/aixlab/aix/feedback"
	"github.com/aixlab/aix/internal/mylog"
	"github.com/aixlab/aix/knowledge"
	"github.com/aixlab/aix/planner"
	"github.com/aixlab/aix/rank"
	"github.com/aixlab/aix/respond"
	"github.com/aixlab/aix/retrieval"
	"github.com/aixlab/aix/rules"
	"github.com/aixlab/aix/server"
	"github.com/aixlab/aix/session"
)

func newCmd() *cobra.Command {
	params := &struct {
		ConfigPath string
	}{}

	cmd := &cobra.Command{
		Use:   "aixd",
		Short: "Knowledge assistant daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			_ = godotenv.Load()

			conf, err := config.Load(params.ConfigPath)
			if err != nil {
				return err
			}

			logger := mylog.NewLogger(conf.Log.LogLevel, conf.Log.LogHandler)

			store, err := knowledge.NewSqliteStore(logger, &conf.Store)
			if err != nil {
				return err
			}
			defer store.Close()

			var embedder embedding.Embedder
			if apiKey := os.Getenv("NOMIC_API_KEY"); apiKey != "" {
				embedder = embedding.NewNomicEmbedder(apiKey)
			} else {
				logger.Warn("NOMIC_API_KEY not set, using deterministic offline embedder")
				embedder = embedding.NewStaticEmbedder(conf.Store.VectorDimension)
			}
			if embedder.Dimension() != conf.Store.VectorDimension {
				return errors.Wrapf(errors.ErrInvalidConfig,
					"embedder dimension %d does not match store dimension %d",
					embedder.Dimension(), conf.Store.VectorDimension)
			}

			sessions := session.NewManager(logger, &conf.Session)
			renderer := respond.NewTemplateRenderer()
			agg := retrieval.NewAggregator(logger, store, embedder, &conf.Query)
			ranker := rank.NewRanker(logger, &conf.Query)
			resolver := rules.NewResolver(logger, store, renderer)
			pl := planner.NewPlanner(logger, &conf.Query)
			generator := respond.NewGenerator(logger, store, renderer, &conf.Query)
			fb := feedback.NewService(logger, store)

			asst := assistant.NewService(logger, conf, store, sessions, agg, ranker, resolver, pl, generator, fb)
			asst.StartMaintenance(ctx)

			srv := &http.Server{
				Addr:    conf.Server.Addr,
				Handler: server.New(logger, asst, fb).Handler(),
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", conf.Server.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&params.ConfigPath, "config", "c", "", "path to YAML config file")

	return cmd
}
