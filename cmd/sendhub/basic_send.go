package main

import (
	"github.com/spf13/cobra"

	"github.com/kart-io/sendhub/pkg/dispatch"
)

func newBasicSendCmd(opts *globalOptions) *cobra.Command {
	var (
		content string
		runKey  string
	)

	cmd := &cobra.Command{
		Use:   "basic-send <platform> <recipient>...",
		Short: "Send fixed content to explicitly listed recipients",
		Long: `Send the same content to every listed recipient on one platform.

Recipients are platform addresses (#channel, user@host, @channelname) or
JSON descriptors for addressing that needs more than one field.

Examples:
  # Slack channel and user
  sendhub basic-send slack "#alerts" @oncall --content "disk almost full" \
      --sender '{"token":"xoxb-..."}'

  # Threaded Slack reply via a descriptor
  sendhub basic-send slack '{"channel":"#alerts","thread_ts":"1712.0001"}' \
      --content "resolved" --config sendhub.yaml`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBasicSend(cmd, opts, args, content, runKey)
		},
	}

	cmd.Flags().StringVar(&content, "content", "", "Message content to deliver")
	cmd.Flags().StringVar(&runKey, "run-key", "", "Suppression key; recipients already sent under this key are skipped")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}

func runBasicSend(cmd *cobra.Command, opts *globalOptions, args []string, content, runKey string) error {
	log := opts.logger()
	ctx := cmd.Context()

	cfg, err := opts.loadConfig(log)
	if err != nil {
		return err
	}
	registry, err := newRegistry(log)
	if err != nil {
		return err
	}

	platformName := args[0]
	recipients, err := parseRecipientArgs(args[1:])
	if err != nil {
		return err
	}
	senderDoc, err := resolveSenderDoc(cfg, platformName, opts.senderSpec)
	if err != nil {
		return err
	}

	orch, cleanup, err := newOrchestrator(ctx, cfg, registry, log)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := orch.SendToAll(ctx, dispatch.Request{
		Platform:     platformName,
		Recipients:   recipients,
		Content:      content,
		SenderConfig: senderDoc,
		RunKey:       runKey,
	})
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), summary)
	return nil
}
