package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/asar"
)

func (c *cli) newUnpackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpack ARCHIVE DEST",
		Short: "Extract every entry of an archive into DEST",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workers, _ := cmd.Flags().GetInt("workers")
			if workers < 1 {
				return fmt.Errorf("--workers must be at least 1, got %d", workers)
			}
			a, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			u := &unpacker{archive: a, dest: args[1], workers: workers, cli: c}
			if err := u.tree(cmd.Context(), "."); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unpacked %d files (%s) to %s\n",
				u.files.Load(), humanize.IBytes(u.bytes.Load()), args[1])
			return nil
		},
	}
	cmd.Flags().IntP("workers", "w", runtime.NumCPU(), "Number of files extracted in parallel")
	return cmd
}

func (c *cli) newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract ARCHIVE PATH...",
		Short: "Extract selected files or directories",
		Long:  "Extract the named entries into --dest, keeping their archive paths. Symlinks are followed.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, _ := cmd.Flags().GetString("dest")
			a, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			u := &unpacker{archive: a, dest: dest, workers: runtime.NumCPU(), cli: c}
			for _, name := range args[1:] {
				clean := path.Clean(filepath.ToSlash(name))
				st, err := a.FS().(fs.StatFS).Stat(clean)
				if err != nil {
					return err
				}
				if st.IsDir() {
					err = u.tree(cmd.Context(), clean)
				} else {
					err = u.file(clean, st.Mode())
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dest, filepath.FromSlash(clean)))
			}
			return nil
		},
	}
	cmd.Flags().StringP("dest", "C", ".", "Directory to extract into")
	return cmd
}

// unpacker writes archive entries below dest.
type unpacker struct {
	archive *asar.Archive
	dest    string
	workers int
	cli     *cli

	files atomic.Int64
	bytes atomic.Uint64
}

// tree extracts the directory root and everything below it. Directories
// and symlinks are created while walking; file contents are copied by a
// bounded pool of workers.
func (u *unpacker) tree(ctx context.Context, root string) error {
	fsys := u.archive.FS()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)

	walkErr := fs.WalkDir(fsys, root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		target, err := u.target(name)
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			return u.symlink(fsys, name, target)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		g.Go(func() error {
			return u.file(name, info.Mode())
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return walkErr
}

// file copies the file at name, following symlinks, to its place below
// dest.
func (u *unpacker) file(name string, mode fs.FileMode) error {
	target, err := u.target(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, info, err := u.archive.OpenFile(name)
	if err != nil {
		return err
	}
	defer src.Close()

	perm := fs.FileMode(0o644)
	if mode&0o111 != 0 {
		perm = 0o755
	}
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm) //nolint:gosec // target is confined to dest
	if err != nil {
		return err
	}
	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("extract %s: %w", name, err)
	}
	u.files.Add(1)
	u.bytes.Add(uint64(n)) //nolint:gosec // n is non-negative
	u.cli.logger.Debug("extracted", "path", name, "size", info.Size, "target", target)
	return nil
}

// symlink recreates the link at name as a relative symlink.
func (u *unpacker) symlink(fsys fs.FS, name, target string) error {
	link, err := fs.ReadLink(fsys, name)
	if err != nil {
		return err
	}
	linkTarget, err := u.target(path.Clean(link))
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(filepath.Dir(target), linkTarget)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Symlink(rel, target)
}

// target maps an archive path to its location below dest, rejecting paths
// that would escape it.
func (u *unpacker) target(name string) (string, error) {
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("refusing to extract %q outside %s", name, u.dest)
	}
	return filepath.Join(u.dest, local), nil
}
