package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	appName    = "overchat"
	appVersion = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Companion daemon for the overchat browser overlay",
	Long: `Overchat is a companion daemon that:
  - serves the page agent script injected into supported streaming sites
  - mirrors each connected page and keeps exactly one chat overlay mounted
  - maintains a realtime session per channel with heartbeats and reconnects`,
	Version: appVersion,
	Run: func(cmd *cobra.Command, args []string) {
		runServe(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s\n", appName, appVersion))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
