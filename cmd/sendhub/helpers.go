package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"github.com/kart-io/sendhub/pkg/config"
	"github.com/kart-io/sendhub/pkg/dispatch"
	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/history"
	"github.com/kart-io/sendhub/pkg/identity"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/observability"
	"github.com/kart-io/sendhub/pkg/platform"
	"github.com/kart-io/sendhub/pkg/platforms/email"
	"github.com/kart-io/sendhub/pkg/platforms/slack"
	"github.com/kart-io/sendhub/pkg/platforms/telegram"
)

// userTableEnv names the environment variable consulted for the identity
// table path when --user-table is not given.
const userTableEnv = "SENDHUB_USER_TABLE"

type globalOptions struct {
	configPath string
	senderSpec string
	workers    int
	verbose    bool
}

func (g *globalOptions) logger() logger.Logger {
	log := logger.New()
	if g.verbose {
		return log.LogMode(logger.Debug)
	}
	return log
}

// loadConfig reads the configuration file if one was given, otherwise
// returns defaults.
func (g *globalOptions) loadConfig(log logger.Logger) (*config.Config, error) {
	opts := []config.Option{config.WithLogger(log)}
	if g.workers > 0 {
		opts = append(opts, config.WithWorkers(g.workers))
	}

	if g.configPath == "" {
		return config.New(opts...)
	}
	data, err := os.ReadFile(g.configPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidConfig, "failed to read configuration %s", g.configPath)
	}
	return config.FromYAML(data, opts...)
}

// newRegistry registers the built-in platforms.
func newRegistry(log logger.Logger) (*platform.Registry, error) {
	registry := platform.NewRegistry(log)
	for _, p := range []platform.Platform{
		slack.New(log),
		email.New(log),
		telegram.New(log),
	} {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// newOrchestrator wires the dispatcher from the configuration. The returned
// cleanup releases the history store and telemetry provider.
func newOrchestrator(ctx context.Context, cfg *config.Config, registry *platform.Registry, log logger.Logger) (*dispatch.Orchestrator, func(), error) {
	opts := []dispatch.Option{
		dispatch.WithLogger(log),
		dispatch.WithWorkers(cfg.Workers),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, dispatch.WithRateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst))
	}

	var cleanups []func()

	if cfg.Redis != nil {
		store, err := history.NewRedisStore(ctx, *cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = store.Close() })
		opts = append(opts, dispatch.WithHistory(store))
	}

	if cfg.Telemetry != nil && cfg.Telemetry.Enabled {
		tp, err := observability.NewTelemetryProvider(*cfg.Telemetry)
		if err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = tp.Shutdown(context.Background()) })
		opts = append(opts, dispatch.WithTelemetry(tp))
	}

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	return dispatch.New(registry, opts...), cleanup, nil
}

// resolveSenderDoc picks the sender settings: --sender wins, then the
// platform section of the configuration file.
func resolveSenderDoc(cfg *config.Config, platformName, senderSpec string) (map[string]interface{}, error) {
	if senderSpec == "" {
		return cfg.SenderDocument(platformName)
	}

	raw, err := readValueArg(senderSpec)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidSenderConfig, "failed to read sender settings")
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidSenderConfig, "sender settings are not a JSON object")
	}
	return doc, nil
}

// parseRecipientArgs converts positional recipient arguments into specs. An
// argument that looks like a JSON object is parsed as a descriptor.
func parseRecipientArgs(args []string) ([]platform.RecipientSpec, error) {
	specs := make([]platform.RecipientSpec, 0, len(args))
	for _, arg := range args {
		if strings.HasPrefix(strings.TrimSpace(arg), "{") {
			var doc map[string]interface{}
			if err := json.Unmarshal([]byte(arg), &doc); err != nil {
				return nil, errors.Wrapf(err, errors.ErrInvalidRecipientSpec, "recipient %q is not valid JSON", arg)
			}
			specs = append(specs, platform.SpecFromDocument(doc))
			continue
		}
		specs = append(specs, platform.SpecFromString(arg))
	}
	return specs, nil
}

// loadUserTable reads the identity table from --user-table, falling back to
// $SENDHUB_USER_TABLE. Returns nil when neither is set.
func loadUserTable(path string, registry []string) (*identity.Table, error) {
	if path == "" {
		path = os.Getenv(userTableEnv)
	}
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidConfig, "failed to read user table %s", path)
	}
	return identity.ParseYAML(data, registry)
}

// loadData reads templating data: a JSON object from the flag value, @file,
// "-", or piped stdin when the flag is empty.
func loadData(spec string, stdin io.Reader) (map[string]interface{}, error) {
	var raw []byte
	switch {
	case spec == "" || spec == "-":
		if spec == "" && !stdinPiped() {
			return nil, nil
		}
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrInvalidConfig, "failed to read data from stdin")
		}
		raw = b
	default:
		b, err := readValueArg(spec)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrInvalidConfig, "failed to read data")
		}
		raw = b
	}

	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidConfig, "data is not a JSON object")
	}
	return data, nil
}

func stdinPiped() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice == 0
}

// readValueArg returns the argument bytes, loading from a file when the
// argument starts with @.
func readValueArg(arg string) ([]byte, error) {
	if strings.HasPrefix(arg, "@") {
		return os.ReadFile(arg[1:])
	}
	return []byte(arg), nil
}

// printSummary writes the per-recipient outcomes and totals.
func printSummary(w io.Writer, summary *dispatch.Summary) {
	for _, o := range summary.Outcomes {
		line := fmt.Sprintf("%-8s %s", o.Status, o.Recipient)
		if o.Detail != "" {
			line += "  (" + o.Detail + ")"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "%s: %d sent, %d skipped, %d failed\n",
		summary.Platform, summary.Sent, summary.Skipped, summary.Failed)
}
