package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/fieldworks/goecat/pkg/mailbox"
	"github.com/spf13/cobra"
)

const mailboxWait = 5 * time.Second

func newSdoCmd() *cobra.Command {
	var completeAccess bool

	cmd := &cobra.Command{
		Use:   "sdo",
		Short: "SDO access to a slave's object dictionary",
	}
	cmd.PersistentFlags().BoolVar(&completeAccess, "complete-access", false, "transfer the whole object at subindex 0")

	read := &cobra.Command{
		Use:   "read <position> <index> <subindex>",
		Short: "Upload an object dictionary entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, index, subindex, err := parseObjectArgs(args)
			if err != nil {
				return err
			}
			_, channel, _, err := openBus()
			if err != nil {
				return err
			}
			client := mailbox.NewClient(channel)
			defer client.Close()
			req, err := client.SdoUpload(position, index, subindex, completeAccess)
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
			fmt.Printf("%x\n", data)
			return nil
		},
	}

	write := &cobra.Command{
		Use:   "write <position> <index> <subindex> <hexbytes>",
		Short: "Download an object dictionary entry",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, index, subindex, err := parseObjectArgs(args)
			if err != nil {
				return err
			}
			data, err := hex.DecodeString(args[3])
			if err != nil {
				return fmt.Errorf("invalid value %q : %v", args[3], err)
			}
			_, channel, _, err := openBus()
			if err != nil {
				return err
			}
			client := mailbox.NewClient(channel)
			defer client.Close()
			req, err := client.SdoDownload(position, index, subindex, data, completeAccess)
			if err != nil {
				return err
			}
			if err := req.Wait(mailboxWait); err != nil {
				return err
			}
			if _, err := req.Result(); err != nil {
				return err
			}
			fmt.Printf("wrote %v bytes to x%04x:%02x\n", len(data), index, subindex)
			return nil
		},
	}

	cmd.AddCommand(read, write)
	return cmd
}

// parseObjectArgs parses position, index and subindex arguments, accepting
// decimal or 0x prefixed hex
func parseObjectArgs(args []string) (uint16, uint16, uint8, error) {
	position, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid position %q : %v", args[0], err)
	}
	index, err := strconv.ParseUint(args[1], 0, 16)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid index %q : %v", args[1], err)
	}
	subindex, err := strconv.ParseUint(args[2], 0, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid subindex %q : %v", args[2], err)
	}
	return uint16(position), uint16(index), uint8(subindex), nil
}
