package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/history"
	"github.com/kart-io/sendhub/pkg/identity"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/observability"
	"github.com/kart-io/sendhub/pkg/platform"
	"github.com/kart-io/sendhub/pkg/resolver"
	"github.com/kart-io/sendhub/pkg/template"
)

// InputBuilder produces the ordered fill values that personalize the content
// template for one person, from the run's templating data. Returning nil
// signals "no relevant data, skip this recipient". Skips are reported, not
// errors, so operators can add the missing data and rerun.
type InputBuilder func(person identity.Person, data map[string]interface{}) []string

// Request carries the fixed inputs of one dispatch run.
type Request struct {
	// Platform is the canonical name of the platform to send over.
	Platform string
	// Recipients is the explicit recipient list. When non-empty it always
	// wins and no identity-table inference happens.
	Recipients []platform.RecipientSpec
	// Content is the message content; with an InputBuilder it is a
	// positional template, otherwise it is sent verbatim.
	Content string
	// SenderConfig is the platform-specific sender credential document.
	SenderConfig map[string]interface{}
	// Data is the templating data, opaque to the core.
	Data map[string]interface{}
	// Table is the identity table; required for inference and for
	// templated mode.
	Table *identity.Table
	// InputBuilder switches the run into templated mode.
	InputBuilder InputBuilder
	// RunKey enables history suppression when an Orchestrator history
	// store is configured: recipients already sent under this key are
	// skipped. Empty disables suppression.
	RunKey string
}

// Orchestrator composes resolution, per-recipient extraction, template
// rendering and delivery into one run with partial-failure semantics: a
// failed delivery to one recipient never blocks delivery to the rest.
type Orchestrator struct {
	registry  *platform.Registry
	logger    logger.Logger
	telemetry *observability.TelemetryProvider
	history   history.Store
	limiter   *rate.Limiter
	workers   int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = log }
}

// WithWorkers bounds the per-recipient worker pool. The default of 1 keeps
// processing strictly sequential in resolver order; higher values are safe
// because recipients are independent, provided the platform client tolerates
// concurrent sends.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) { o.workers = n }
}

// WithRateLimit bounds the send rate across all recipients in a run.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(o *Orchestrator) { o.limiter = rate.NewLimiter(limit, burst) }
}

// WithHistory sets the sent-recipient store consulted on keyed runs.
func WithHistory(store history.Store) Option {
	return func(o *Orchestrator) { o.history = store }
}

// WithTelemetry sets the telemetry provider.
func WithTelemetry(tp *observability.TelemetryProvider) Option {
	return func(o *Orchestrator) { o.telemetry = tp }
}

// New creates an orchestrator over the given platform registry.
func New(registry *platform.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		logger:   logger.Discard,
		workers:  1,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.telemetry == nil {
		// Disabled provider hands out no-op tracers and meters.
		o.telemetry, _ = observability.NewTelemetryProvider(observability.Config{})
	}
	return o
}

// Send delivers the identical content to every resolved recipient (basic
// mode). Equivalent to SendToAll without an InputBuilder.
func (o *Orchestrator) Send(ctx context.Context, platformName string, recipients []platform.RecipientSpec, content string, senderConfig map[string]interface{}) (*Summary, error) {
	return o.SendToAll(ctx, Request{
		Platform:     platformName,
		Recipients:   recipients,
		Content:      content,
		SenderConfig: senderConfig,
	})
}

// SendToAll runs one dispatch. Configuration-time failures (unknown platform,
// invalid recipient spec, invalid sender config, malformed template) abort
// before any send attempt; a template arity mismatch aborts the run because a
// template bug affects every recipient identically. Per-recipient send errors
// are recorded as failed outcomes and the run continues: every recipient gets
// at most one send attempt per run, and rerunning the dispatch is the retry
// mechanism.
func (o *Orchestrator) SendToAll(ctx context.Context, req Request) (*Summary, error) {
	p, err := o.registry.Get(req.Platform)
	if err != nil {
		return nil, err
	}

	// Malformed templates fail before the client is even constructed.
	if req.InputBuilder != nil {
		if _, err := template.SlotCount(req.Content); err != nil {
			return nil, err
		}
	}

	candidates, err := resolver.Resolve(p, req.Recipients, req.Table, o.logger)
	if err != nil {
		return nil, err
	}

	ctx, runSpan := o.telemetry.TraceRun(ctx, req.Platform, len(candidates))

	client, err := p.NewClient(ctx, req.SenderConfig)
	if err != nil {
		wrapped := errors.Wrap(err, errors.ErrInvalidSenderConfig, "failed to acquire sending client").WithPlatform(req.Platform)
		if errors.IsConfigError(err) {
			// Keep the platform's own code when it already classified the failure.
			observability.EndSpan(runSpan, err)
			return nil, err
		}
		observability.EndSpan(runSpan, wrapped)
		return nil, wrapped
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			o.logger.Warn("Failed to release client", "platform", req.Platform, "error", closeErr)
		}
	}()

	o.logger.Info("Dispatch run starting",
		"platform", req.Platform,
		"candidates", len(candidates),
		"templated", req.InputBuilder != nil)

	summary := NewSummary(req.Platform)
	runErr := o.process(ctx, client, candidates, req, summary)

	o.logger.Info("Dispatch run finished",
		"platform", req.Platform,
		"sent", summary.Sent,
		"skipped", summary.Skipped,
		"failed", summary.Failed)

	observability.EndSpan(runSpan, runErr)
	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}

// process walks the candidates with the configured worker count. Outcomes are
// recorded in resolver order regardless of completion order.
func (o *Orchestrator) process(ctx context.Context, client platform.Client, candidates []resolver.Candidate, req Request, summary *Summary) error {
	if o.workers <= 1 {
		for _, cand := range candidates {
			outcome, err := o.processCandidate(ctx, client, cand, req)
			if err != nil {
				return err
			}
			summary.Add(outcome)
		}
		return nil
	}

	workers := o.workers
	if workers > len(candidates) {
		workers = len(candidates)
	}
	if workers < 1 {
		workers = 1
	}

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]*Outcome, len(candidates))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		fatalMu  sync.Mutex
		fatalErr error
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcome, err := o.processCandidate(poolCtx, client, candidates[i], req)
				if err != nil {
					fatalMu.Lock()
					if fatalErr == nil {
						fatalErr = err
					}
					fatalMu.Unlock()
					cancel()
					return
				}
				outcomes[i] = &outcome
			}
		}()
	}

	for i := range candidates {
		select {
		case jobs <- i:
		case <-poolCtx.Done():
		}
		if poolCtx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	for _, outcome := range outcomes {
		if outcome != nil {
			summary.Add(*outcome)
		}
	}
	return fatalErr
}

// processCandidate drives one recipient through the
// candidate -> {skipped | rendered -> sent | rendered -> failed} state
// machine. The returned error is run-fatal (template bugs only); delivery
// failures become failed outcomes instead.
func (o *Orchestrator) processCandidate(ctx context.Context, client platform.Client, cand resolver.Candidate, req Request) (Outcome, error) {
	id := cand.Recipient.ID()

	if o.history != nil && req.RunKey != "" {
		seen, err := o.history.Seen(ctx, req.RunKey, id)
		if err != nil {
			// A history outage must not block delivery; worst case a
			// rerun double-sends.
			o.logger.Warn("History lookup failed, proceeding with send", "recipient", id, "error", err)
		} else if seen {
			o.logger.Info("Skipping recipient already sent under run key", "recipient", id, "run_key", req.RunKey)
			o.telemetry.RecordSkipped(ctx, req.Platform)
			return Outcome{Recipient: id, Status: StatusSkipped, Detail: "already sent under run key " + req.RunKey}, nil
		}
	}

	content := req.Content
	if req.InputBuilder != nil {
		if cand.Person == nil {
			o.logger.Warn("Skipping recipient with no identity table entry", "platform", req.Platform, "recipient", id)
			o.telemetry.RecordSkipped(ctx, req.Platform)
			return Outcome{Recipient: id, Status: StatusSkipped, Detail: "no identity table entry"}, nil
		}

		values := req.InputBuilder(cand.Person, req.Data)
		if values == nil {
			o.logger.Warn("Skipping recipient with no templating data", "platform", req.Platform, "recipient", id)
			o.telemetry.RecordSkipped(ctx, req.Platform)
			return Outcome{Recipient: id, Status: StatusSkipped, Detail: "no templating data"}, nil
		}

		rendered, err := template.Render(req.Content, values)
		if err != nil {
			return Outcome{}, err
		}
		content = rendered
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return Outcome{
				Recipient: id,
				Status:    StatusFailed,
				Detail:    "rate limit wait aborted: " + err.Error(),
				Err:       errors.Wrap(err, errors.ErrSendFailed, "rate limit wait aborted").WithRecipient(id),
			}, nil
		}
	}

	start := time.Now()
	sendCtx, span := o.telemetry.TraceSend(ctx, req.Platform, id)
	err := client.Send(sendCtx, cand.Recipient, content)
	observability.EndSpan(span, err)

	if err != nil {
		o.telemetry.RecordFailed(ctx, req.Platform)
		o.logger.Error("Delivery failed", "platform", req.Platform, "recipient", id, "error", err)
		return Outcome{
			Recipient: id,
			Status:    StatusFailed,
			Detail:    err.Error(),
			Err:       errors.Wrap(err, errors.ErrSendFailed, "delivery failed").WithPlatform(req.Platform).WithRecipient(id),
		}, nil
	}

	o.telemetry.RecordSent(ctx, req.Platform, time.Since(start))
	o.logger.Debug("Delivered", "platform", req.Platform, "recipient", id)

	if o.history != nil && req.RunKey != "" {
		if err := o.history.MarkSent(ctx, req.RunKey, id); err != nil {
			o.logger.Warn("Failed to record sent recipient", "recipient", id, "error", err)
		}
	}

	return Outcome{Recipient: id, Status: StatusSent}, nil
}
