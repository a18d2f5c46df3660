package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/romangod6/sitemapdump/internal/app"
	"github.com/romangod6/sitemapdump/internal/errs"
	"github.com/romangod6/sitemapdump/internal/indexer"
	"github.com/spf13/cobra"
)

func newIndexCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <input|-> <output|->",
		Short: "Build a key,url index from a list of URLs",
		Long: `Read URLs one per line from <input> ("-" for stdin), take the key of each
from the first capture group of --index-pattern, and write key,url rows sorted
by key to <output> ("-" for stdout, csv only). URLs the pattern does not
match are reported and left out.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runIndex(cmd.Context(), args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.StringP("index-pattern", "i", "", "Regular expression whose first group is the key (required)")
	f.String("format", "csv", "Output format: csv or xlsx")
	f.Bool("crlf", false, "End csv lines with \\r\\n")

	c.bind(cmd, "index.pattern", "index-pattern")
	c.bind(cmd, "index.format", "format")
	c.bind(cmd, "index.crlf", "crlf")

	return cmd
}

func (c *cli) runIndex(ctx context.Context, input, output string) error {
	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer logger.Close()

	b, err := indexer.NewBuilder(cfg.Index.Pattern, logger)
	if err != nil {
		return err
	}

	urls, err := c.readInput(input)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Storage.DSN)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	sink, finish, err := c.openSink(cfg.Index.Format, cfg.Index.CRLF, output)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app.App{Store: store, Logger: logger}
	_, res, err := a.Index(ctx, b, input, urls, sink)
	if ferr := finish(err == nil); err == nil && ferr != nil {
		err = fmt.Errorf("%w: %s: %w", errs.ErrIO, output, ferr)
	}
	if err != nil {
		return err
	}

	logger.LogInfo("Wrote %d rows to %s, %d URLs did not match", len(res.Rows), output, len(res.Unmatched))
	return nil
}

func (c *cli) readInput(input string) ([]string, error) {
	if input == "-" {
		return indexer.ReadURLs(c.in)
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrIO, err)
	}
	defer f.Close()

	return indexer.ReadURLs(f)
}

// openSink returns the sink for output and the function that ends it. Files
// are written under a temporary name in the same directory and only renamed
// to output when finish is called with ok, so a failed run leaves no partial
// index behind.
func (c *cli) openSink(format string, useCRLF bool, output string) (indexer.Sink, func(ok bool) error, error) {
	if output == "-" {
		if format == "xlsx" {
			return nil, nil, fmt.Errorf("%w: xlsx output needs a file name", errs.ErrConfig)
		}
		return indexer.NewCSVSink(c.out, useCRLF), func(bool) error { return nil }, nil
	}

	// excelize picks the file type from the extension.
	tmp, err := os.CreateTemp(filepath.Dir(output), ".sitemapdump-*."+format)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errs.ErrIO, err)
	}

	var sink indexer.Sink
	closed := false
	if format == "xlsx" {
		tmp.Close()
		closed = true
		sink = indexer.NewXLSXSink(tmp.Name())
	} else {
		sink = indexer.NewCSVSink(tmp, useCRLF)
	}

	finish := func(ok bool) error {
		var err error
		if !closed {
			err = tmp.Close()
		}
		if err == nil && ok {
			if err = os.Chmod(tmp.Name(), 0644); err == nil {
				err = os.Rename(tmp.Name(), output)
			}
		}
		if err != nil || !ok {
			os.Remove(tmp.Name())
		}
		return err
	}

	return sink, finish, nil
}
