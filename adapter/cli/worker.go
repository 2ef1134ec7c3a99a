package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

// maintenanceInterval is how often the worker purges stale slots and
// expired reservation locks.
const maintenanceInterval = time.Hour

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the notification dispatch worker",
	Long: `Run the outbox dispatch worker until interrupted.

The worker claims due notifications, hands them to the broker and delivers
them through the configured channel. It also serves /healthz and /readyz on
WORKER_HEALTH_ADDR and periodically removes stale FREE slots.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		return RunWorker(cmd.Context(), app)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// RunWorker runs the dispatcher, its health server and the periodic
// maintenance until ctx is cancelled.
func RunWorker(ctx context.Context, app *App) error {
	log := Logger()
	if err := app.Dispatcher.Start(ctx); err != nil {
		return err
	}
	defer app.Dispatcher.Stop()

	if addr := app.Config.WorkerHealthAddr; addr != "" {
		healthSrv := &http.Server{
			Addr:              addr,
			Handler:           workerHealthHandler(app),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("health server starting", "addr", addr)
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("health server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				log.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	statsInterval := app.Config.OutboxStatsInterval
	if statsInterval <= 0 {
		statsInterval = 30 * time.Second
	}
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()
	maintenanceTicker := time.NewTicker(maintenanceInterval)
	defer maintenanceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down worker")
			return nil
		case <-statsTicker.C:
			logStats(ctx, app)
		case <-maintenanceTicker.C:
			runMaintenance(ctx, app, time.Now())
		}
	}
}

func logStats(ctx context.Context, app *App) {
	log := Logger()
	stats := app.Dispatcher.GetStats()
	attrs := []any{
		"running", stats.IsRunning,
		"cycles", stats.Cycles,
		"claimed", stats.Claimed,
		"sent", stats.Sent,
		"retried", stats.Retried,
		"failed", stats.Failed,
		"last_error", stats.LastError,
	}
	if counts, err := app.Operator.Stats(ctx); err == nil {
		for status, n := range counts {
			attrs = append(attrs, "outbox_"+string(status), n)
		}
	} else {
		log.Warn("failed to count outbox rows", "error", err)
	}
	log.Info("dispatch stats", attrs...)
}

// runMaintenance is best effort; failures are logged and retried next tick.
func runMaintenance(ctx context.Context, app *App, now time.Time) {
	log := Logger()
	if app.Config.SlotRetention > 0 {
		deleted, err := app.CleanupSlotsHandler.Handle(ctx, now.Add(-app.Config.SlotRetention))
		if err != nil {
			log.Error("slot cleanup failed", "error", err)
		} else if deleted > 0 {
			log.Info("stale slots removed", "deleted", deleted)
		}
	}
	if app.Locks != nil {
		purged, err := app.Locks.PurgeExpired(ctx, now)
		if err != nil {
			log.Error("lock purge failed", "error", err)
		} else if purged > 0 {
			log.Info("expired reservation locks purged", "purged", purged)
		}
	}
}

func workerHealthHandler(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := app.Dispatcher.GetStats()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "ok",
			"running":       stats.IsRunning,
			"cycles":        stats.Cycles,
			"sent":          stats.Sent,
			"retried":       stats.Retried,
			"failed":        stats.Failed,
			"last_cycle_at": stats.LastCycleAt,
			"last_error_at": stats.LastErrorAt,
			"last_error":    stats.LastError,
		})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		report := app.Health.Check(checkCtx)
		status := http.StatusOK
		if report.Status == observability.HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		Logger().Error("failed to encode JSON response", "error", err)
	}
}
