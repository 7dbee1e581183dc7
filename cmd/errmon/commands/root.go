package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strongdm/ai-errmon/pkg/errmon"
)

const Version = "0.1.0"

// DefaultEnvPrefix prefixes environment overrides, e.g. ERRMON_ALERT_COOLDOWN.
const DefaultEnvPrefix = "ERRMON_"

type rootOptions struct {
	cfgFile   string
	envPrefix string
	log       logOptions
}

func (o *rootOptions) loadConfig() (errmon.Config, error) {
	return errmon.LoadConfig(o.cfgFile, o.envPrefix)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "errmon",
		Short: "Error monitoring and alerting",
		Long: `errmon classifies errors, keeps a bounded history, raises alerts for
repeated and cascading failures and reports a system health score.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (YAML)")
	flags.StringVar(&opts.envPrefix, "env-prefix", DefaultEnvPrefix, "prefix of environment overrides")
	flags.StringVar(&opts.log.backend, "log-backend", backendZap, "log backend: zap, stderr, cxdb or none")
	flags.StringVar(&opts.log.level, "log-level", "info", "zap log level")
	flags.BoolVar(&opts.log.production, "log-json", false, "zap JSON output")
	flags.BoolVar(&opts.log.verbose, "log-verbose", false, "stderr backend prints fields and stack traces")
	flags.StringVar(&opts.log.cxdbAddr, "cxdb-addr", "localhost:9009", "cxdb address for the cxdb backend")

	root.AddCommand(
		newReplayCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newClassifyCmd(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
