// Package cli implements the friendgraph command line.
package cli

import (
	"log"

	"github.com/TFMV/friendgraph/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

var (
	brand  = color.New(color.FgHiGreen, color.Bold)
	subtle = color.New(color.FgHiBlack)
	warn   = color.New(color.FgYellow)
	good   = color.New(color.FgGreen)
)

var rootCmd = &cobra.Command{
	Use:          "friendgraph",
	Short:        "Force-directed layouts of who knows whom",
	Long:         "friendgraph builds a social graph from friend-group submissions and lays it out with a spring simulation.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds)
			log.Println("Debug mode enabled")
		} else {
			log.SetFlags(log.LstdFlags)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a .toml or .yaml config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(layoutCmd)
}

// loadConfig returns the defaults unless --config names a file.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}
