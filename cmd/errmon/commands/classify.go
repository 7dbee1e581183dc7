package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strongdm/ai-errmon/pkg/errmon"
)

func newClassifyCmd() *cobra.Command {
	var desc errmon.ErrorDescriptor
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show how an error would be classified",
		Example: `  errmon classify --kind network --code timeout
  errmon classify --kind circuit_breaker_open --service vision`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err, invalid := desc.Build()
			if invalid != nil {
				return invalid
			}
			c := errmon.Classify(err)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Error            : %v\n", err)
			fmt.Fprintf(out, "Category         : %s\n", c.Category)
			fmt.Fprintf(out, "Severity         : %s\n", c.Severity)
			fmt.Fprintf(out, "User recoverable : %t\n", c.UserRecoverable)
			fmt.Fprintf(out, "Error key        : %s\n", c.ErrorKey)
			fmt.Fprintf(out, "Immediate alert  : %t\n", errmon.ShouldTriggerImmediateAlert(err))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&desc.Kind, "kind", "", "error kind, e.g. network or StorageError")
	flags.StringVar(&desc.Code, "code", "", "error code")
	flags.StringVar(&desc.Message, "message", "", "error message")
	flags.StringVar(&desc.Service, "service", "", "service behind a circuit breaker")
	return cmd
}
