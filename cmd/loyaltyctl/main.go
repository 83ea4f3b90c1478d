package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"smallbiznis-loyaltycore/internal/app"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "loyaltyctl",
		Short:   "Operate the loyalty points engine",
		Version: Version,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tierSyncCmd())
	rootCmd.AddCommand(consolidateCmd())
	rootCmd.AddCommand(balanceCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp starts the engine without the worker surfaces, populates targets
// and runs fn before stopping it again.
func withApp(ctx context.Context, fn func(ctx context.Context) error, targets ...any) error {
	application := fx.New(
		app.Infra(),
		app.Services,
		fx.NopLogger,
		fx.Populate(targets...),
	)
	if err := application.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := application.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()

	return fn(ctx)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
