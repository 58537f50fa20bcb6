package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kart-io/sendhub/pkg/dispatch"
	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/identity"
)

func newTemplatedSendCmd(opts *globalOptions) *cobra.Command {
	var (
		dataSpec    string
		tablePath   string
		recipients  []string
		runKey      string
		keyPlatform string
	)

	cmd := &cobra.Command{
		Use:   "templated-send <platform> <template>",
		Short: "Fill a positional template per recipient and send it",
		Long: `Render the template once per recipient and deliver the result.

Slot {0} is filled with the recipient's primary username and the
remaining slots with that username's entry from the data document, a
JSON object mapping usernames to a value or list of values. Recipients
without a data entry are skipped. The usernames keying the data default
to the delivery platform's; --key-platform selects another column of
the identity table (for example gce owners notified on slack).

Recipients come from --recipients, or are inferred from the identity
table: every person with an address on the platform is included. The
table path falls back to $` + userTableEnv + ` when --user-table is not set.

Examples:
  # Infer recipients from the table, data piped on stdin
  expirations | sendhub templated-send slack "Hi {0}. {1}" \
      --user-table team.yaml --config sendhub.yaml

  # Explicit recipients with a data file
  sendhub templated-send email "Hi {0}. {1}" \
      --recipients ops@example.com --data @expirations.json \
      --user-table team.yaml --sender @smtp.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatedSend(cmd, opts, args, dataSpec, tablePath, recipients, runKey, keyPlatform)
		},
	}

	cmd.Flags().StringVar(&dataSpec, "data", "", "Templating data as JSON, @file, or - for stdin (default: stdin when piped)")
	cmd.Flags().StringVar(&tablePath, "user-table", "", "Path to the identity table (YAML)")
	cmd.Flags().StringSliceVar(&recipients, "recipients", nil, "Explicit recipients; skips table inference")
	cmd.Flags().StringVar(&runKey, "run-key", "", "Suppression key; recipients already sent under this key are skipped")
	cmd.Flags().StringVar(&keyPlatform, "key-platform", "", "Identity-table platform whose usernames key the data (default: the delivery platform)")

	return cmd
}

func runTemplatedSend(cmd *cobra.Command, opts *globalOptions, args []string, dataSpec, tablePath string, recipientArgs []string, runKey, keyPlatform string) error {
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
	template := args[1]
	if keyPlatform == "" {
		keyPlatform = platformName
	}

	// The table may carry columns for platforms sendhub never delivers to,
	// such as the one keying the data document.
	known := registry.Names()
	if keyPlatform != platformName {
		known = append(known, keyPlatform)
	}
	table, err := loadUserTable(tablePath, known)
	if err != nil {
		return err
	}
	recipients, err := parseRecipientArgs(recipientArgs)
	if err != nil {
		return err
	}
	if len(recipients) == 0 && table == nil {
		return errors.New(errors.ErrInvalidConfig,
			"templated-send needs --recipients or an identity table to infer them from")
	}

	data, err := loadData(dataSpec, cmd.InOrStdin())
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
		Content:      template,
		SenderConfig: senderDoc,
		Data:         data,
		Table:        table,
		InputBuilder: keyedInputBuilder(keyPlatform),
		RunKey:       runKey,
	})
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), summary)
	reportUnrecognized(cmd, table, keyPlatform, data)
	return nil
}

// keyedInputBuilder fills slot {0} with the person's primary username on the
// key platform and the remaining slots with that username's data entry. No
// username or no entry means the recipient is skipped.
func keyedInputBuilder(keyPlatform string) dispatch.InputBuilder {
	return func(person identity.Person, data map[string]interface{}) []string {
		id := person.PrimaryID(keyPlatform)
		if id == "" {
			return nil
		}
		entry, ok := data[id]
		if !ok {
			return nil
		}

		values := []string{id}
		switch v := entry.(type) {
		case string:
			values = append(values, v)
		case []interface{}:
			for _, item := range v {
				values = append(values, fmt.Sprint(item))
			}
		default:
			values = append(values, fmt.Sprint(v))
		}
		return values
	}
}

// reportUnrecognized warns about data keys that matched nobody in the table.
func reportUnrecognized(cmd *cobra.Command, table *identity.Table, keyPlatform string, data map[string]interface{}) {
	if table == nil || len(data) == 0 {
		return
	}
	usernames := make([]string, 0, len(data))
	for username := range data {
		usernames = append(usernames, username)
	}
	for _, username := range table.Unrecognized(keyPlatform, usernames) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: no %s entry for %q in the user table\n", keyPlatform, username)
	}
}
