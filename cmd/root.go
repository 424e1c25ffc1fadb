package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dLayer/cmd/kv"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dlayer",
		Short: "layered key-value overlays",
		Long: fmt.Sprintf(`dLayer (v%s)

Layered in-memory key-value overlays in front of a durable ordered store.
Writes are staged in sessions on an undo stack and either committed to the
database or discarded.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dLayer",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dLayer v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
