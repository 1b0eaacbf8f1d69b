package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/elskow/amsterdam-discovery/internal/config"
)

func TestNewSender(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.MailConfig
		want    any
		wantErr bool
	}{
		{name: "disabled logs", cfg: config.MailConfig{}, want: &LogSender{}},
		{name: "enabled without host", cfg: config.MailConfig{Enabled: true, From: "noreply@x.com"}, wantErr: true},
		{name: "enabled without from", cfg: config.MailConfig{Enabled: true, Host: "smtp.example.com", Port: 587}, wantErr: true},
		{
			name: "enabled smtp",
			cfg:  config.MailConfig{Enabled: true, Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "noreply@x.com"},
			want: &SMTPSender{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewSender(&tt.cfg, zap.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, sender)
		})
	}
}

func TestLogSender_Send(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sender := NewLogSender(zap.New(core))

	require.NoError(t, sender.Send(context.Background(), "a@x.com", "Subject", "Your code is 123456."))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "a@x.com", fields["to"])
	assert.Equal(t, "Your code is 123456.", fields["body"])
}

func TestSMTPSender_RejectsBadRecipient(t *testing.T) {
	sender, err := NewSMTPSender(&config.MailConfig{Host: "smtp.example.com", Port: 587, From: "noreply@x.com"}, zap.NewNop())
	require.NoError(t, err)

	err = sender.Send(context.Background(), "not an address", "s", "b")
	assert.Error(t, err)
}
