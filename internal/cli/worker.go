package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the schedule monitor until interrupted",
	Long: `Runs the background schedule monitor: the hourly confirmation-nudge
cycle and the daily pairwise conflict sweep. Blocks until the process
receives an interrupt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var healthSrv *http.Server
		if c.Config.WorkerHealthAddr != "" {
			healthSrv = newHealthServer(c.Config.WorkerHealthAddr)
			go func() {
				logger.Info("health endpoint listening", "addr", c.Config.WorkerHealthAddr)
				if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("health endpoint failed", "error", err)
				}
			}()
		}

		err = c.ScheduleMonitor.Run(ctx)

		if healthSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = healthSrv.Shutdown(shutdownCtx)
		}

		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func newHealthServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		c := GetApp()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"running": c != nil && c.ScheduleMonitor.IsRunning(),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		c := GetApp()
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")
		if c == nil || c.Ping(checkCtx) != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "not_ready"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ready"})
	})

	return &http.Server{Addr: addr, Handler: mux}
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
