package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fieldworks/goecat/pkg/mailbox"
	"github.com/spf13/cobra"
)

func newFoeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foe",
		Short: "File access to a slave over FoE",
	}

	read := &cobra.Command{
		Use:   "read <position> <name>",
		Short: "Read a file from a slave and print it to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			_, channel, _, err := openBus()
			if err != nil {
				return err
			}
			client := mailbox.NewClient(channel)
			defer client.Close()
			req, err := client.FoeRead(position, args[1])
			if err != nil {
				return err
			}
			if err := req.Wait(mailboxWait); err != nil {
				return err
			}
			data, err := req.Result()
			if err != nil {
				return err
			}
			os.Stdout.Write(data)
			return nil
		},
	}

	write := &cobra.Command{
		Use:   "write <position> <name> <local-file>",
		Short: "Write a local file to a slave",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			_, channel, _, err := openBus()
			if err != nil {
				return err
			}
			client := mailbox.NewClient(channel)
			defer client.Close()
			req, err := client.FoeWrite(position, args[1], data)
			if err != nil {
				return err
			}
			if err := req.Wait(mailboxWait); err != nil {
				return err
			}
			if _, err := req.Result(); err != nil {
				return err
			}
			fmt.Printf("wrote %v bytes to %v\n", len(data), args[1])
			return nil
		},
	}

	cmd.AddCommand(read, write)
	return cmd
}

func parsePosition(raw string) (uint16, error) {
	position, err := strconv.ParseUint(raw, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q : %v", raw, err)
	}
	return uint16(position), nil
}
