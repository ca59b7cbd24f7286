package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (c *cli) newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat ARCHIVE PATH",
		Short: "Show metadata for an archive entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.Stat(args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case st.IsLink:
				target, err := a.Realpath(args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "type: symlink\ntarget: %s\n", target)
			case st.IsDirectory:
				names, err := a.Readdir(args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "type: directory\nentries: %d\n", len(names))
			default:
				fmt.Fprintf(out, "type: file\nsize: %s (%d bytes)\n", humanize.IBytes(uint64(st.Size)), st.Size)
				if st.Unpacked {
					fmt.Fprintln(out, "unpacked: true")
				} else {
					fmt.Fprintf(out, "offset: %d\n", st.Offset)
				}
				fmt.Fprintf(out, "executable: %t\n", st.Executable)
				if st.Integrity != nil {
					fmt.Fprintf(out, "integrity: %s %s\n", st.Integrity.Algorithm, st.Integrity.Hash)
				}
			}
			return nil
		},
	}
}
