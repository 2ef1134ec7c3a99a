package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var serveWithWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the booking and operator HTTP API on HTTP_ADDR until interrupted.

With --with-worker the dispatch worker runs in the same process, which is
convenient for single-node SQLite deployments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if serveWithWorker {
			if err := app.Dispatcher.Start(ctx); err != nil {
				return err
			}
			defer app.Dispatcher.Stop()
		}

		errCh := make(chan error, 1)
		go func() {
			if err := app.API.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.API.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", false, "also run the dispatch worker")
	rootCmd.AddCommand(serveCmd)
}
