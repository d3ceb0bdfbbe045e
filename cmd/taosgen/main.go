// Command taosgen drives a synthetic time-series insert workload against
// TDengine or a wire-level sink (Kafka, MQTT, a CSV skeleton), grounded on
// kwbase/pkg/cli's cobra root-command shape (spec §6 "CLI").
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/taosdata/taosgen-sub001/internal/config"
	"github.com/taosdata/taosgen-sub001/internal/logutil"
	"github.com/taosdata/taosgen-sub001/internal/orchestrator"
)

var log = logutil.New("cmd")

// version is overridden at link time in release builds (`-ldflags
// "-X main.version=..."`); left as "dev" for a from-source build.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taosgen",
		Short:         "synthetic time-series data generator and load driver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the taosgen version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println(version)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run an insert job against the configured sink",
		Args:  cobra.NoArgs,
		RunE:  runRun,
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "path to a job YAML file")
	flags.String("host", "", "tdengine.host override")
	flags.Int("port", 0, "tdengine.port override")
	flags.StringP("user", "u", "", "tdengine.user override")
	flags.StringP("password", "p", "", "tdengine.password override")
	flags.BoolP("verbose", "v", false, "enable verbose logging")

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return errors.Wrap(err, "cmd: reading --config")
	}
	host, _ := flags.GetString("host")
	port, _ := flags.GetInt("port")
	user, _ := flags.GetString("user")
	password, _ := flags.GetString("password")
	verbose, _ := flags.GetBool("verbose")

	if verbose {
		logutil.SetThreshold(logutil.SeverityInfo)
	} else {
		logutil.SetThreshold(logutil.SeverityWarning)
	}

	cfg, err := config.Load(configPath, config.CLIOverrides{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
	})
	if err != nil {
		return err
	}

	jobCfg, err := config.Build(cfg, configPath)
	if err != nil {
		return err
	}

	o, err := orchestrator.New(jobCfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	summary, err := o.Run(ctx)
	if err != nil {
		return err
	}

	log.Infof("done: %d rows across %d tables in %s (interrupted=%v)",
		summary.TotalRows, summary.TablesWritten, summary.Elapsed, summary.Interrupted)
	return nil
}
