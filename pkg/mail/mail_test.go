package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openwaitlist/waitlist/pkg/config"
)

func TestNewSenderDefaults(t *testing.T) {
	cfg := config.Config{}
	cfg.Mail.Host = "smtp.example.com"
	cfg.Mail.Port = 587

	s := NewSender(cfg, zap.NewNop().Sugar())
	assert.Equal(t, "smtp.example.com", s.GetHost())

	impl, ok := s.(*sender)
	require.True(t, ok)
	assert.Equal(t, "noreply@waitlist.local", impl.senderAddress)
	assert.Equal(t, "Waitlist", impl.senderName)
	assert.Equal(t, 3, impl.retryCount)
	assert.Equal(t, 100, impl.retryBackoffMs)
}

func TestNewSenderBrandingName(t *testing.T) {
	cfg := config.Config{}
	cfg.Mail.Host = "smtp.example.com"
	cfg.Frontend.BrandingName = "Example Waitlist"

	impl := NewSender(cfg, zap.NewNop().Sugar()).(*sender)
	assert.Equal(t, "Example Waitlist", impl.senderName)
}

func TestRenderConfirmation(t *testing.T) {
	body, err := RenderConfirmation(ConfirmationParams{
		Name:      "ada lovelace",
		Username:  "ada",
		Product:   "Example",
		PortalURL: "https://waitlist.example.com",
	})
	require.NoError(t, err)

	// sprig's title function capitalizes the name
	assert.True(t, strings.Contains(body, "Ada Lovelace"))
	assert.True(t, strings.Contains(body, "<b>ada</b>"))
	assert.True(t, strings.Contains(body, "Example waitlist"))
	assert.True(t, strings.Contains(body, `href="https://waitlist.example.com"`))
}

func TestRenderConfirmationDefaults(t *testing.T) {
	body, err := RenderConfirmation(ConfirmationParams{Username: "jdoe"})
	require.NoError(t, err)

	assert.True(t, strings.Contains(body, "Welcome!"))
	assert.True(t, strings.Contains(body, "Waitlist waitlist"))
	assert.False(t, strings.Contains(body, "href="))
}

func TestConfirmationSubject(t *testing.T) {
	assert.Equal(t, "You're on the Example waitlist", ConfirmationSubject("Example"))
	assert.Equal(t, "You're on the Waitlist waitlist", ConfirmationSubject(""))
}
