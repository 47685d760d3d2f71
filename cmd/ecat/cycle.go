package main

import (
	"fmt"
	"time"

	ecat "github.com/fieldworks/goecat"
	"github.com/fieldworks/goecat/pkg/master"
	"github.com/spf13/cobra"
)

func newCycleCmd() *cobra.Command {
	var count int
	var period time.Duration

	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run cyclic process data exchange",
		Long: `Configures every slave from its description file, maps all declared PDO
entries into one domain, brings the bus to OP and exchanges process data
for the given number of cycles. Output entries are driven with a rolling
counter pattern.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, topo, err := openBus()
			if err != nil {
				return err
			}
			domain, err := m.CreateDomain()
			if err != nil {
				return err
			}

			var outputs []*master.Entry
			for i := range topo.Slaves {
				spec := &topo.Slaves[i]
				desc, err := topo.description(spec)
				if err != nil {
					return err
				}
				sc, err := m.ConfigureSlave(spec.addr(), desc.Id)
				if err != nil {
					return err
				}
				if err := sc.ConfigPdos(desc.Syncs); err != nil {
					return err
				}
				for _, sync := range desc.Syncs {
					for _, pdo := range sync.Pdos {
						for _, info := range pdo.Entries {
							entry, err := domain.Register(sc, info.Index, info.Subindex)
							if err != nil {
								return err
							}
							if sync.Direction == ecat.DirectionOutput {
								outputs = append(outputs, entry)
							}
						}
					}
				}
			}

			if err := m.Activate(); err != nil {
				return err
			}
			defer m.Deactivate()
			if err := m.RequestState(ecat.AlStateOp); err != nil {
				return err
			}
			if err := m.WaitForState(ecat.AlStateOp); err != nil {
				return err
			}
			fmt.Printf("bus is OP, domain size %v bytes, %v output entries\n", domain.Size(), len(outputs))

			for cycle := 0; cycle < count; cycle++ {
				if err := m.SyncReferenceClockTo(time.Now()); err != nil {
					return err
				}
				if err := m.SyncSlaveClocks(); err != nil {
					return err
				}
				for _, entry := range outputs {
					entry.SetUint(uint64(cycle))
				}
				if err := domain.Queue(); err != nil {
					return err
				}
				if err := m.Send(); err != nil {
					return err
				}
				time.Sleep(period)
				if err := m.Receive(); err != nil {
					return err
				}
				if err := domain.Process(); err != nil {
					return err
				}
				state := domain.State()
				fmt.Printf("cycle %3d : wc %v (%v) data %x\n",
					cycle, state.WorkingCounter, state.WcState, domain.Data())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "c", 10, "number of cycles to run")
	cmd.Flags().DurationVarP(&period, "period", "p", 10*time.Millisecond, "cycle period")
	return cmd
}
