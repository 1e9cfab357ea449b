package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/api/handlers"
	"github.com/wastecollect/waste-dispatch-api/api/scheduler"
	"github.com/wastecollect/waste-dispatch-api/config"
	"github.com/wastecollect/waste-dispatch-api/databases"
)

const shutdownTimeout = 20 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the websocket channel and the rematch scheduler",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, err := config.New(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a := handlers.App{Config: *conf}
	if err := a.Initialize(); err != nil { //initialize database and router
		return err
	}

	var sched *scheduler.Scheduler
	if conf.RematchCron != "" {
		sched = scheduler.NewScheduler(a.Services.Requests, databases.NewSchedulerLockDatabase(a.Database()), conf.RematchCron, conf.AutoAssignPool)
		if err := sched.Start(); err != nil {
			a.Close(context.Background())
			return err
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", conf.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("waste-dispatch-api is up and running",
			"port", conf.Port,
			"url", conf.BaseURL,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		zap.S().Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if sched != nil {
		sched.Stop()
	}
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		zap.S().Errorw("http shutdown", "error", serr)
	}
	a.Close(shutdownCtx)

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
