package main

import (
	"fmt"

	"github.com/atolldev/atoll/atollbuild"
	"github.com/atolldev/atoll/atollruntime"
	"github.com/spf13/cobra"
)

// buildCmd runs the production build.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the production build",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := atollruntime.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return atollbuild.Build(atollruntime.New(cfg))
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
