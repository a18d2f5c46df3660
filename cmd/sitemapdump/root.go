package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/romangod6/sitemapdump/config"
	"github.com/romangod6/sitemapdump/internal/errs"
	"github.com/romangod6/sitemapdump/internal/storage"
	"github.com/romangod6/sitemapdump/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli holds what every subcommand shares: one viper instance with the flags
// bound to it, and the process streams.
type cli struct {
	v       *viper.Viper
	cfgFile string
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), in: in, out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:           "sitemapdump",
		Short:         "Collect the URLs listed in a site's sitemaps and index them by key",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "Config file (default ./config.yaml or ./config/config.yaml)")
	pf.String("store", "", "Record runs in a store: sqlite:<file> or postgres://...")
	pf.BoolP("verbose", "v", false, "Log debug messages")
	pf.String("log-dir", "", "Also write logs to a rotated file in this directory")
	c.bind(rootCmd, "storage.dsn", "store")
	c.bind(rootCmd, "log.verbose", "verbose")
	c.bind(rootCmd, "log.dir", "log-dir")

	rootCmd.AddCommand(
		newDumpCmd(c),
		newIndexCmd(c),
		newServeCmd(c),
	)

	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string) int {
	rootCmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %s", err.Error()))
		return exitCode(err)
	}
	return 0
}

// exitCode is 2 for bad configuration or arguments and 1 for everything else.
func exitCode(err error) int {
	if errors.Is(err, errs.ErrConfig) {
		return 2
	}
	return 1
}

// bind ties a flag of cmd to a configuration key, so a flag given on the
// command line overrides the config file and environment.
func (c *cli) bind(cmd *cobra.Command, key, name string) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(name)
	}
	if err := c.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind --%s: %v", name, err))
	}
}

// load reads the configuration and opens the logger. The caller closes the logger.
func (c *cli) load() (*config.Config, *utils.Logger, error) {
	cfg, err := config.LoadConfig(c.v, c.cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errs.ErrConfig, err)
	}

	logger, err := utils.NewLogger("sitemapdump", c.errOut, utils.LogOptions{
		Dir:        cfg.Log.Dir,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Verbose:    cfg.Log.Verbose,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errs.ErrIO, err)
	}

	return cfg, logger, nil
}

// openStore opens the run store named by dsn, or returns nil when dsn is empty.
func openStore(dsn string) (storage.Store, error) {
	if dsn == "" {
		return nil, nil
	}
	driver, conn := storage.ParseDSN(dsn)
	return storage.Open(driver, conn)
}
