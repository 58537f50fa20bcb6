package email

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/platform"
)

func TestNewRecipient(t *testing.T) {
	p := New(logger.Discard)

	tests := []struct {
		name       string
		spec       platform.RecipientSpec
		wantID     string
		wantString string
		wantErr    bool
	}{
		{
			name:       "bare address",
			spec:       platform.SpecFromString("ops@example.com"),
			wantID:     "ops@example.com",
			wantString: "ops@example.com",
		},
		{
			name: "descriptor with display name",
			spec: platform.SpecFromDocument(map[string]interface{}{
				"address": "ops@example.com",
				"name":    "Ops Team",
			}),
			wantID:     "ops@example.com",
			wantString: "Ops Team <ops@example.com>",
		},
		{
			name:    "empty address",
			spec:    platform.SpecFromString(""),
			wantErr: true,
		},
		{
			name:    "missing at sign",
			spec:    platform.SpecFromString("ops.example.com"),
			wantErr: true,
		},
		{
			name:    "missing domain dot",
			spec:    platform.SpecFromString("ops@localhost"),
			wantErr: true,
		},
		{
			name:    "descriptor without address",
			spec:    platform.SpecFromDocument(map[string]interface{}{"name": "Ops"}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := p.NewRecipient(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrInvalidRecipientSpec, errors.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, r.ID())
			assert.Equal(t, tt.wantString, r.String())
		})
	}
}

func TestParseSenderConfig(t *testing.T) {
	valid := func() map[string]interface{} {
		return map[string]interface{}{
			"smtp_host": "smtp.example.com",
			"smtp_port": 587,
			"from":      "noreply@example.com",
		}
	}

	t.Run("defaults", func(t *testing.T) {
		cfg, err := parseSenderConfig(valid())
		require.NoError(t, err)
		assert.Equal(t, "smtp.example.com", cfg.smtpHost)
		assert.Equal(t, 587, cfg.smtpPort)
		assert.Equal(t, "Notification", cfg.subject)
		assert.True(t, cfg.useTLS)
		assert.False(t, cfg.useSSL)
		assert.Equal(t, 30*time.Second, cfg.timeout)
	})

	t.Run("port from float", func(t *testing.T) {
		doc := valid()
		doc["smtp_port"] = float64(465)
		cfg, err := parseSenderConfig(doc)
		require.NoError(t, err)
		assert.Equal(t, 465, cfg.smtpPort)
	})

	t.Run("overrides", func(t *testing.T) {
		doc := valid()
		doc["subject"] = "Instance expiring"
		doc["username"] = "mailer"
		doc["password"] = "secret"
		doc["tls"] = false
		doc["timeout"] = "10s"
		cfg, err := parseSenderConfig(doc)
		require.NoError(t, err)
		assert.Equal(t, "Instance expiring", cfg.subject)
		assert.Equal(t, "mailer", cfg.username)
		assert.False(t, cfg.useTLS)
		assert.Equal(t, 10*time.Second, cfg.timeout)
	})

	invalid := []struct {
		name     string
		mutate   func(map[string]interface{})
		wantCode errors.ErrorCode
	}{
		{
			name:     "missing host",
			mutate:   func(d map[string]interface{}) { delete(d, "smtp_host") },
			wantCode: errors.ErrInvalidSenderConfig,
		},
		{
			name:     "missing port",
			mutate:   func(d map[string]interface{}) { delete(d, "smtp_port") },
			wantCode: errors.ErrInvalidSenderConfig,
		},
		{
			name:     "port out of range",
			mutate:   func(d map[string]interface{}) { d["smtp_port"] = 70000 },
			wantCode: errors.ErrInvalidSenderConfig,
		},
		{
			name:     "missing from",
			mutate:   func(d map[string]interface{}) { delete(d, "from") },
			wantCode: errors.ErrInvalidSenderConfig,
		},
		{
			name:     "bad from address",
			mutate:   func(d map[string]interface{}) { d["from"] = "noreply" },
			wantCode: errors.ErrInvalidSenderConfig,
		},
		{
			name:     "username without password",
			mutate:   func(d map[string]interface{}) { d["username"] = "mailer" },
			wantCode: errors.ErrMissingCredentials,
		},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			doc := valid()
			tt.mutate(doc)
			_, err := parseSenderConfig(doc)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.GetErrorCode(err))
			assert.True(t, errors.IsConfigError(err))
		})
	}
}

func TestNewClientDoesNotDial(t *testing.T) {
	p := New(logger.Discard)

	// Construction must not touch the network. The host does not resolve,
	// so a dial here would fail the test.
	c, err := p.NewClient(context.Background(), map[string]interface{}{
		"smtp_host": "smtp.invalid",
		"smtp_port": 587,
		"from":      "noreply@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestClientSendAfterClose(t *testing.T) {
	p := New(logger.Discard)
	c, err := p.NewClient(context.Background(), map[string]interface{}{
		"smtp_host": "smtp.invalid",
		"smtp_port": 587,
		"from":      "noreply@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	err = c.Send(context.Background(), Recipient{Address: "ops@example.com"}, "late")
	require.Error(t, err)
	assert.Equal(t, errors.ErrClientClosed, errors.GetErrorCode(err))
}
