package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/history"
	"github.com/kart-io/sendhub/pkg/identity"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/platform"
)

var testRegistry = []string{"slack", "email", "gce"}

func newTestRig(t *testing.T, opts ...Option) (*Orchestrator, *platform.MockPlatform) {
	t.Helper()
	mock := &platform.MockPlatform{PlatformName: "slack", Client: &platform.MockClient{}}
	reg := platform.NewRegistry(logger.Discard)
	require.NoError(t, reg.Register(mock))
	return New(reg, opts...), mock
}

func loadTable(t *testing.T, records []identity.Record) *identity.Table {
	t.Helper()
	table, err := identity.Load(records, testRegistry)
	require.NoError(t, err)
	return table
}

func specs(values ...string) []platform.RecipientSpec {
	out := make([]platform.RecipientSpec, len(values))
	for i, v := range values {
		out[i] = platform.SpecFromString(v)
	}
	return out
}

// ownerBuilder extracts fill values for persons whose gce username appears in
// the templating data, mirroring an instance-expiration notifier.
func ownerBuilder(person identity.Person, data map[string]interface{}) []string {
	owner := person.PrimaryID("gce")
	if owner == "" {
		return nil
	}
	if _, ok := data[owner]; !ok {
		return nil
	}
	return []string{owner, fmt.Sprintf("%v", data[owner])}
}

func TestBasicSendOncePerRecipientInOrder(t *testing.T) {
	o, mock := newTestRig(t)

	summary, err := o.Send(context.Background(), "slack", specs("@a", "@b", "@c"), "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"@a", "@b", "@c"}, mock.Client.SentTo())
	assert.Equal(t, 3, summary.Sent)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	for _, s := range mock.Client.Sent {
		assert.Equal(t, "hello", s.Content)
	}
}

func TestBasicSendUnknownPlatform(t *testing.T) {
	o, mock := newTestRig(t)

	_, err := o.Send(context.Background(), "irc", specs("@a"), "hello", nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.New(errors.ErrPlatformNotRegistered, "")))
	assert.Equal(t, 0, mock.Constructed)
}

func TestSendErrorDoesNotAbortRun(t *testing.T) {
	o, mock := newTestRig(t)
	mock.Client.FailFor = map[string]error{"@b": fmt.Errorf("rate limited")}

	summary, err := o.Send(context.Background(), "slack", specs("@a", "@b", "@c"), "hello", nil)
	require.NoError(t, err)

	// @c still gets its delivery and its outcome is recorded after @b's failure.
	assert.Equal(t, []string{"@a", "@c"}, mock.Client.SentTo())
	require.Equal(t, 3, summary.Total())
	assert.Equal(t, StatusSent, summary.Outcomes[0].Status)
	assert.Equal(t, StatusFailed, summary.Outcomes[1].Status)
	assert.Equal(t, "@b", summary.Outcomes[1].Recipient)
	assert.Equal(t, StatusSent, summary.Outcomes[2].Status)
	assert.True(t, stderrors.Is(summary.Outcomes[1].Err, errors.New(errors.ErrSendFailed, "")))
}

func TestInvalidSenderConfigAbortsBeforeAnySend(t *testing.T) {
	o, mock := newTestRig(t)
	mock.ClientErr = errors.New(errors.ErrInvalidSenderConfig, "token is required").WithPlatform("slack")

	_, err := o.Send(context.Background(), "slack", specs("@a", "@b"), "hello", nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.New(errors.ErrInvalidSenderConfig, "")))
	assert.Equal(t, 0, mock.Constructed)
	assert.Empty(t, mock.Client.Sent)
}

func TestClientReleasedAfterRun(t *testing.T) {
	o, mock := newTestRig(t)

	_, err := o.Send(context.Background(), "slack", specs("@a"), "hello", nil)
	require.NoError(t, err)
	assert.True(t, mock.Client.Closed)
}

func TestTemplatedScenario(t *testing.T) {
	// table = [{"gce": ["owner1"], "slack": ["@user1"]}], data keyed by gce
	// owner, template with two positional slots.
	o, mock := newTestRig(t)
	table := loadTable(t, []identity.Record{
		{"gce": {"owner1"}, "slack": {"@user1"}},
	})

	summary, err := o.SendToAll(context.Background(), Request{
		Platform: "slack",
		Content:  "Hi {0}. {1}",
		Data:     map[string]interface{}{"owner1": "Expiration for instance 'inst1': 2099-01-01\n"},
		Table:    table,
		InputBuilder: func(person identity.Person, data map[string]interface{}) []string {
			owner := person.PrimaryID("gce")
			note, ok := data[owner].(string)
			if !ok {
				return nil
			}
			return []string{owner, note}
		},
	})
	require.NoError(t, err)

	require.Len(t, mock.Client.Sent, 1)
	assert.Equal(t, "@user1", mock.Client.Sent[0].Recipient)
	assert.Equal(t, "Hi owner1. Expiration for instance 'inst1': 2099-01-01\n", mock.Client.Sent[0].Content)
	assert.Equal(t, 1, summary.Sent)
}

func TestTemplatedNoDataSkips(t *testing.T) {
	// Same table, empty data: the builder finds nothing, the recipient is
	// skipped and zero sends happen.
	o, mock := newTestRig(t)
	table := loadTable(t, []identity.Record{
		{"gce": {"owner1"}, "slack": {"@user1"}},
	})

	summary, err := o.SendToAll(context.Background(), Request{
		Platform:     "slack",
		Content:      "Hi {0}. {1}",
		Data:         map[string]interface{}{},
		Table:        table,
		InputBuilder: ownerBuilder,
	})
	require.NoError(t, err)

	assert.Empty(t, mock.Client.Sent)
	require.Equal(t, 1, summary.Total())
	assert.Equal(t, StatusSkipped, summary.Outcomes[0].Status)
	assert.Equal(t, "no templating data", summary.Outcomes[0].Detail)
}

func TestTemplatedExplicitRecipientMissingFromTable(t *testing.T) {
	o, mock := newTestRig(t)
	table := loadTable(t, []identity.Record{
		{"gce": {"owner1"}, "slack": {"@user1"}},
	})

	summary, err := o.SendToAll(context.Background(), Request{
		Platform:   "slack",
		Recipients: specs("@user1", "@stranger"),
		Content:    "Hi {0}. {1}",
		Data:       map[string]interface{}{"owner1": "note"},
		Table:      table,
		InputBuilder: func(person identity.Person, data map[string]interface{}) []string {
			return []string{person.PrimaryID("gce"), data[person.PrimaryID("gce")].(string)}
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"@user1"}, mock.Client.SentTo())
	require.Equal(t, 2, summary.Total())
	assert.Equal(t, StatusSkipped, summary.Outcomes[1].Status)
	assert.Equal(t, "no identity table entry", summary.Outcomes[1].Detail)
}

func TestTemplateMismatchAbortsRun(t *testing.T) {
	o, mock := newTestRig(t)
	table := loadTable(t, []identity.Record{
		{"gce": {"owner1"}, "slack": {"@user1"}},
		{"gce": {"owner2"}, "slack": {"@user2"}},
	})

	_, err := o.SendToAll(context.Background(), Request{
		Platform: "slack",
		Content:  "Hi {0}. {1}",
		Data:     map[string]interface{}{"owner1": "note", "owner2": "note"},
		Table:    table,
		InputBuilder: func(person identity.Person, data map[string]interface{}) []string {
			return []string{person.PrimaryID("gce")} // one value for two slots
		},
	})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.New(errors.ErrTemplateMismatch, "")))
	assert.Empty(t, mock.Client.Sent)
}

func TestMalformedTemplateFailsBeforeClientConstruction(t *testing.T) {
	o, mock := newTestRig(t)
	table := loadTable(t, []identity.Record{
		{"gce": {"owner1"}, "slack": {"@user1"}},
	})

	_, err := o.SendToAll(context.Background(), Request{
		Platform:     "slack",
		Content:      "Hi {0", // unterminated slot
		Table:        table,
		InputBuilder: ownerBuilder,
	})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.New(errors.ErrTemplateRenderFailed, "")))
	assert.Equal(t, 0, mock.Constructed)
}

func TestTemplatedInferredRecipients(t *testing.T) {
	// No explicit recipients: every person with a slack presence becomes a
	// candidate; only those with data get a message.
	o, mock := newTestRig(t)
	table := loadTable(t, []identity.Record{
		{"gce": {"owner1"}, "slack": {"@user1"}},
		{"gce": {"owner2"}, "slack": {"@user2"}},
		{"gce": {"owner3"}, "email": {"owner3@example.com"}},
	})

	summary, err := o.SendToAll(context.Background(), Request{
		Platform:     "slack",
		Content:      "Hi {0}. {1}",
		Data:         map[string]interface{}{"owner2": "note"},
		Table:        table,
		InputBuilder: ownerBuilder,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"@user2"}, mock.Client.SentTo())
	require.Equal(t, 2, summary.Total())
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Skipped)
}

func TestHistorySuppressionAcrossRuns(t *testing.T) {
	store := history.NewMemoryStore()
	o, mock := newTestRig(t, WithHistory(store))

	// First run reaches both recipients.
	summary, err := o.SendToAll(context.Background(), Request{
		Platform:   "slack",
		Recipients: specs("@a", "@b"),
		Content:    "hello",
		RunKey:     "expiry-2026-08",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sent)

	// Rerun under the same key: both suppressed, no new sends.
	summary, err = o.SendToAll(context.Background(), Request{
		Platform:   "slack",
		Recipients: specs("@a", "@b"),
		Content:    "hello",
		RunKey:     "expiry-2026-08",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 2, summary.Skipped)
	assert.Len(t, mock.Client.Sent, 2)
}

func TestHistoryIgnoredWithoutRunKey(t *testing.T) {
	store := history.NewMemoryStore()
	o, mock := newTestRig(t, WithHistory(store))

	for i := 0; i < 2; i++ {
		_, err := o.SendToAll(context.Background(), Request{
			Platform:   "slack",
			Recipients: specs("@a"),
			Content:    "hello",
		})
		require.NoError(t, err)
	}
	assert.Len(t, mock.Client.Sent, 2)
}

func TestFailedDeliveryNotRecordedInHistory(t *testing.T) {
	store := history.NewMemoryStore()
	o, mock := newTestRig(t, WithHistory(store))
	mock.Client.FailFor = map[string]error{"@a": fmt.Errorf("boom")}

	_, err := o.SendToAll(context.Background(), Request{
		Platform:   "slack",
		Recipients: specs("@a"),
		Content:    "hello",
		RunKey:     "run",
	})
	require.NoError(t, err)

	// A rerun must retry the failed recipient.
	mock.Client.FailFor = nil
	summary, err := o.SendToAll(context.Background(), Request{
		Platform:   "slack",
		Recipients: specs("@a"),
		Content:    "hello",
		RunKey:     "run",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
}

func TestConcurrentWorkersDeliverAll(t *testing.T) {
	o, mock := newTestRig(t, WithWorkers(4))

	var recipients []platform.RecipientSpec
	for i := 0; i < 20; i++ {
		recipients = append(recipients, platform.SpecFromString(fmt.Sprintf("@user%02d", i)))
	}

	summary, err := o.Send(context.Background(), "slack", recipients, "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, 20, summary.Sent)
	assert.Len(t, mock.Client.Sent, 20)

	// Outcomes stay in resolver order even with concurrent completion.
	for i, outcome := range summary.Outcomes {
		assert.Equal(t, fmt.Sprintf("@user%02d", i), outcome.Recipient)
	}
}
