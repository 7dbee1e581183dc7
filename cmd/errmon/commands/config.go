package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/strongdm/ai-errmon/pkg/errmon"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective monitor configuration as YAML",
		Long: `Config prints the configuration after the config file and environment
overrides are applied. With --profile it prints a built-in profile instead.
The output is itself a valid config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg errmon.Config
			switch profile {
			case "":
				var err error
				if cfg, err = root.loadConfig(); err != nil {
					return err
				}
			case "production":
				cfg = errmon.ProductionConfig()
			case "test":
				cfg = errmon.TestConfig()
			default:
				return fmt.Errorf("unknown profile %q", profile)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "print a built-in profile (production, test)")
	return cmd
}
