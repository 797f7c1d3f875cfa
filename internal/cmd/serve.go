package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hnm/search/internal/server"
)

const shutdownTimeout = 10 * time.Second

func (a *app) newServeCmd() *cobra.Command {
	var (
		listen    string
		withCheck bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: `Serve exposes GET /search, POST /index, DELETE /index, GET /healthz
and GET /metrics. With --check the health-check job runs in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.setup()
			if err != nil {
				return err
			}
			defer e.Close()

			if listen == "" {
				listen = e.cfg.Server.ListenAddr
			}

			srv := server.New(e.indexer(), e.searcher(), server.WithLogger(e.logger))
			httpServer := &http.Server{
				Addr:              listen,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				e.logger.Info("listening", "addr", listen)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})
			if withCheck {
				job, release := newCheckJob(e)
				defer release()
				g.Go(func() error {
					return job.Run(ctx, e.cfg.Check.Interval)
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from server.listen_addr)")
	cmd.Flags().BoolVar(&withCheck, "check", false, "Run the health-check job in the background")
	return cmd
}
