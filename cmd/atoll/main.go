// Command atoll is the Atoll CLI: `atoll dev` runs the development loop,
// `atoll build` produces the production bundle and route manifest.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "atoll",
	Short: "Islands meta-framework runtime",
	Long: `Atoll glues a component UI framework to a Vite-style bundler:
a pages directory becomes a dev server with live style resolution and a
production build emitting a per-route asset manifest with independently
bundled islands.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "atoll.config.json", "Path to the Atoll config file")
}
