package main

import (
	"fmt"
	"strings"

	ecat "github.com/fieldworks/goecat"
	"github.com/spf13/cobra"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state [init|preop|safeop|op]",
		Short: "Report the bus state, optionally requesting a new one first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, _, err := openBus()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				target, err := parseAlState(args[0])
				if err != nil {
					return err
				}
				if err := m.RequestState(target); err != nil {
					return err
				}
				if err := m.WaitForState(target); err != nil {
					return err
				}
			}
			state, err := m.State()
			if err != nil {
				return err
			}
			fmt.Printf("AL state   : %v\n", state.AlStates)
			fmt.Printf("responding : %v\n", state.SlavesResponding)
			fmt.Printf("link       : %v\n", linkText(state.LinkUp))
			return nil
		},
	}
}

func parseAlState(raw string) (ecat.AlState, error) {
	switch strings.ToLower(raw) {
	case "init":
		return ecat.AlStateInit, nil
	case "preop", "pre-op":
		return ecat.AlStatePreOp, nil
	case "safeop", "safe-op":
		return ecat.AlStateSafeOp, nil
	case "op":
		return ecat.AlStateOp, nil
	default:
		return 0, fmt.Errorf("unknown AL state %q", raw)
	}
}

func linkText(up bool) string {
	if up {
		return "up"
	}
	return "down"
}
