package main

import (
	"fmt"

	"codeberg.org/mutker/torquectl/internal/serial"
	"github.com/spf13/cobra"
)

func NewPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := serial.List()
			if err != nil {
				return err
			}

			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}

			return nil
		},
	}
}
