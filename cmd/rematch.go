package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/api/handlers"
	"github.com/wastecollect/waste-dispatch-api/config"
	"github.com/wastecollect/waste-dispatch-api/databases"
)

var rematchCount int

var rematchCmd = &cobra.Command{
	Use:   "rematch",
	Short: "Re-run matching once for the most recent pending requests",
	RunE:  rematch,
}

func init() {
	rematchCmd.Flags().IntVarP(&rematchCount, "count", "n", 0, "how many pending requests to sweep (default auto_assign_pool)")
	rootCmd.AddCommand(rematchCmd)
}

// rematch sweeps without the realtime channel; assignments it makes are only persisted
// and logged since no client can be connected to this process.
func rematch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, err := config.New(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	n := rematchCount
	if n <= 0 {
		n = conf.AutoAssignPool
	}

	client, err := databases.NewClient(conf)
	if err != nil {
		return fmt.Errorf("create database client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			zap.S().Errorw("failed to disconnect from database", "error", err)
		}
	}()

	services := handlers.NewServices(conf, handlers.MongoBackends(databases.NewDatabase(conf, client)), nil, nil, nil)
	assigned, err := services.Requests.SweepPending(ctx, n)
	if err != nil {
		return fmt.Errorf("sweep pending requests: %w", err)
	}
	zap.S().Infow("rematch complete", "swept", n, "assigned", assigned)
	fmt.Fprintf(cmd.OutOrStdout(), "assigned %d of the %d most recent pending requests\n", assigned, n)
	return nil
}
