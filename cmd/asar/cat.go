package main

import (
	"github.com/spf13/cobra"
)

func (c *cli) newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat ARCHIVE PATH",
		Short: "Write a file's content to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			content, err := a.ReadFile(args[1])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	}
}
