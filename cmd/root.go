package cmd

import (
	"fmt"
	"os"

	"github.com/andy-ce-taylor/reslock/cmd/lock"
	"github.com/spf13/cobra"
)

const (
	Version = "1.2.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "reslock",
		Short: "advisory cross-process resource locking",
		Long: fmt.Sprintf(`ResLock (v%s)

An advisory, cross-process mutual-exclusion primitive for arbitrary
named resources, coordinated entirely through atomic directory
creation in a shared lock store on the filesystem.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of reslock",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("reslock v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
