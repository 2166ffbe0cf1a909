package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/atolldev/atoll/atolldev"
	"github.com/atolldev/atoll/atollruntime"
	"github.com/spf13/cobra"
)

// devCmd runs the development loop until interrupted.
var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Run the dev server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := atollruntime.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		atollruntime.SetModeToDev()
		app := atollruntime.New(cfg)
		app.Init()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return atolldev.NewServer(app).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(devCmd)
}
