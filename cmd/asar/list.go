package main

import (
	"fmt"
	"io/fs"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (c *cli) newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list ARCHIVE",
		Aliases: []string{"ls"},
		Short:   "List archive entries",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, _ := cmd.Flags().GetString("glob")
			long, _ := cmd.Flags().GetBool("long")
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("invalid --glob pattern %q", pattern)
			}

			a, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			return fs.WalkDir(a.FS(), ".", func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					c.logger.Warn("skipping entry", "path", path, "error", err)
					return nil
				}
				if path == "." {
					return nil
				}
				if matched, _ := doublestar.Match(pattern, path); !matched {
					return nil
				}
				if !long {
					_, err := fmt.Fprintln(out, path)
					return err
				}
				info, err := d.Info()
				if err != nil {
					c.logger.Warn("skipping entry", "path", path, "error", err)
					return nil
				}
				size := humanize.IBytes(uint64(info.Size())) //nolint:gosec // sizes are non-negative
				if d.IsDir() {
					size = "-"
				}
				if d.Type()&fs.ModeSymlink != 0 {
					target, _ := fs.ReadLink(a.FS(), path)
					_, err = fmt.Fprintf(out, "%s %9s %s -> %s\n", info.Mode(), size, path, target)
					return err
				}
				_, err = fmt.Fprintf(out, "%s %9s %s\n", info.Mode(), size, path)
				return err
			})
		},
	}
	cmd.Flags().String("glob", "**", "Only list paths matching this doublestar pattern")
	cmd.Flags().BoolP("long", "l", false, "Show mode and size")
	return cmd
}
