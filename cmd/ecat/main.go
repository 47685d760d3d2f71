package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	topologyPath string
	verbose      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ecat",
		Short: "EtherCAT master playground on a simulated bus",
		Long: `ecat drives the master library against a simulated bus described by a
YAML topology file. It brings slaves through the AL state machine, runs
cyclic process data exchange and issues mailbox transfers, which makes it
useful for trying out slave descriptions without hardware.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&topologyPath, "topology", "t", "", "YAML file describing the simulated bus")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.MarkPersistentFlagRequired("topology")

	rootCmd.AddCommand(newSlavesCmd())
	rootCmd.AddCommand(newStateCmd())
	rootCmd.AddCommand(newCycleCmd())
	rootCmd.AddCommand(newSdoCmd())
	rootCmd.AddCommand(newFoeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
