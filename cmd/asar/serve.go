package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	asarhttp "github.com/meigma/asar/http"
)

func (c *cli) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve ARCHIVE",
		Short: "Serve archive contents over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			prefix, _ := cmd.Flags().GetString("prefix")
			list, _ := cmd.Flags().GetBool("list")
			headers, _ := cmd.Flags().GetStringArray("header")

			opts := []asarhttp.HandlerOption{
				asarhttp.WithPrefix(prefix),
				asarhttp.WithDirectoryListing(list),
				asarhttp.WithLogger(c.logger),
			}
			for _, h := range headers {
				key, value, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("invalid --header %q (want Key: Value)", h)
				}
				opts = append(opts, asarhttp.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
			}

			a, err := c.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := &nethttp.Server{
				Addr:              addr,
				Handler:           asarhttp.NewHandler(a, opts...),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				c.logger.Info("serving archive", "archive", args[0], "addr", addr)
				errc <- server.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errc; !errors.Is(err, nethttp.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "Listen address")
	cmd.Flags().String("prefix", "", "URL path prefix to strip")
	cmd.Flags().Bool("list", false, "Serve HTML listings for directories")
	cmd.Flags().StringArray("header", nil, "Extra response header as \"Key: Value\" (repeatable)")
	return cmd
}
