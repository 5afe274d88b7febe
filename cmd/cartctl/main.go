// Command cartctl drives a persisted cart from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goflare.io/cartstore/config"
	"goflare.io/cartstore/internal/app"
	"goflare.io/cartstore/logger"
	"goflare.io/cartstore/models"
	"goflare.io/cartstore/models/enum"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "cartctl",
		Short:        "Manage the RocketShoes cart",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the yaml config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print the cart",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSession(cmd, configPath, func(_ context.Context, deps *app.Dependencies) error {
					return printCart(cmd, deps.Provider.Cart())
				})
			},
		},
		&cobra.Command{
			Use:   "add PRODUCT_ID",
			Short: "Add one unit of a product",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseInt("PRODUCT_ID", args[0])
				if err != nil {
					return err
				}
				return withSession(cmd, configPath, func(ctx context.Context, deps *app.Dependencies) error {
					deps.Provider.AddProduct(ctx, id)
					return report(cmd, deps)
				})
			},
		},
		&cobra.Command{
			Use:   "remove PRODUCT_ID",
			Short: "Remove a product from the cart",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseInt("PRODUCT_ID", args[0])
				if err != nil {
					return err
				}
				return withSession(cmd, configPath, func(ctx context.Context, deps *app.Dependencies) error {
					deps.Provider.RemoveProduct(ctx, id)
					return report(cmd, deps)
				})
			},
		},
		&cobra.Command{
			Use:   "update PRODUCT_ID AMOUNT",
			Short: "Set the amount of a product in the cart",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseInt("PRODUCT_ID", args[0])
				if err != nil {
					return err
				}
				amount, err := parseInt("AMOUNT", args[1])
				if err != nil {
					return err
				}
				return withSession(cmd, configPath, func(ctx context.Context, deps *app.Dependencies) error {
					deps.Provider.UpdateProductAmount(ctx, models.UpdateProductAmount{ProductID: id, Amount: amount})
					return report(cmd, deps)
				})
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Print cart events published by other sessions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSession(cmd, configPath, func(ctx context.Context, deps *app.Dependencies) error {
					return watch(ctx, cmd, deps)
				})
			},
		},
	)

	return root
}

func withSession(cmd *cobra.Command, configPath string, fn func(context.Context, *app.Dependencies) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Debug("Configuration loaded", zap.Stringer("config", cfg))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Setup(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	return fn(ctx, deps)
}

func watch(ctx context.Context, cmd *cobra.Command, deps *app.Dependencies) error {
	if deps.EventManager == nil {
		return errors.New("watch needs nats.url to be configured")
	}

	// handlers run on several workers
	var mu sync.Mutex
	out := json.NewEncoder(cmd.OutOrStdout())
	printEvent := func(_ context.Context, event *models.CartEvent) error {
		mu.Lock()
		defer mu.Unlock()
		return out.Encode(event)
	}
	deps.EventManager.RegisterHandler(enum.EventTypeCartChanged, printEvent)
	deps.EventManager.RegisterHandler(enum.EventTypeNotification, printEvent)

	sub, err := deps.EventManager.SubscribeToEvents()
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	deps.Logger.Info("Watching cart events")
	<-ctx.Done()
	return nil
}

// report prints the notifications raised by the operation, then the cart.
func report(cmd *cobra.Command, deps *app.Dependencies) error {
	for _, n := range deps.Recorder.Notifications() {
		cmd.PrintErrln("error:", n.Message)
	}
	return printCart(cmd, deps.Provider.Cart())
}

func printCart(cmd *cobra.Command, cart models.Cart) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(cart)
}

func parseInt(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %q", name, value)
	}
	return n, nil
}
