package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSlavesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slaves",
		Short: "List the slaves on the bus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, _, err := openBus()
			if err != nil {
				return err
			}
			info, err := m.Info()
			if err != nil {
				return err
			}
			fmt.Printf("POS  ALIAS  IDENTITY            STATE    NAME\n")
			for pos := uint16(0); pos < uint16(info.SlaveCount); pos++ {
				slave, err := m.SlaveInfo(pos)
				if err != nil {
					return err
				}
				fmt.Printf("%3d  %5d  %v  %-7v  %v\n",
					slave.RingPos, slave.Alias, slave.Id, slave.AlState, slave.Name)
			}
			return nil
		},
	}
}
