// sendhub delivers one message to many recipients across platforms.
//
// Usage:
//
//	sendhub basic-send slack "#alerts" @oncall --content "disk almost full" --sender '{"token":"xoxb-..."}'
//	sendhub templated-send email "Hi {0}. {1}" --user-table team.yaml --data expirations.json
//
// Sender settings come from --sender, or from the platform section of the
// --config file. Delivery failures are reported in the summary and do not
// change the exit code; only configuration errors do.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kart-io/sendhub/pkg/errors"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and maps the outcome to an exit code. Configuration
// errors exit 2, usage errors exit 1, everything else exits 0 even when
// some deliveries failed.
func run(args []string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.IsConfigError(err) {
			return 2
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "sendhub",
		Short: "Deliver a message to many recipients across platforms",
		Long: `sendhub dispatches one message to a set of recipients on a single
platform per run. Recipients come from the command line or are inferred
from an identity table, and the message is either fixed content or a
positional template filled per recipient.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a sendhub configuration file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&opts.senderSpec, "sender", "s", "", "Sender settings as JSON, or @file")
	rootCmd.PersistentFlags().IntVarP(&opts.workers, "workers", "w", 0, "Concurrent delivery workers (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newBasicSendCmd(opts),
		newTemplatedSendCmd(opts),
	)

	return rootCmd
}
