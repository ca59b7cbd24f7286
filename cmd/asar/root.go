package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/asar"
	asarhttp "github.com/meigma/asar/http"
)

// cli holds state shared by subcommands.
type cli struct {
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{logger: slog.New(slog.DiscardHandler)}

	rootCmd := &cobra.Command{
		Use:           "asar",
		Short:         "Inspect and extract packed archives",
		Long:          "Inspect, extract and serve .asar archives. ARCHIVE may be a local path or an http(s) URL.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			format, _ := cmd.Flags().GetString("log-format")
			logger, err := newLogger(cmd.ErrOrStderr(), level, format)
			if err != nil {
				return err
			}
			c.logger = logger
			return nil
		},
	}
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().Bool("verify", false, "Verify file integrity digests when reading")

	rootCmd.AddCommand(
		c.newListCmd(),
		c.newStatCmd(),
		c.newCatCmd(),
		c.newExtractCmd(),
		c.newUnpackCmd(),
		c.newServeCmd(),
	)
	return rootCmd
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (want text or json)", format)
	}
}

// open opens a local or remote archive.
func (c *cli) open(cmd *cobra.Command, location string) (*asar.Archive, error) {
	verify, _ := cmd.Flags().GetBool("verify")
	opts := []asar.Option{
		asar.WithLogger(c.logger),
		asar.WithVerifyIntegrity(verify),
	}
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return asar.Open(location, opts...)
	}
	src, err := asarhttp.NewSource(location)
	if err != nil {
		return nil, err
	}
	return asar.New(src, opts...)
}
