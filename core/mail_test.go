package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmailTemplates(t *testing.T) {
	conf := &Config{AppName: "Taarifa", FrontendBaseURL: "http://school.test", TestMode: true}
	require.NoError(t, ParseEmailTemplates(conf))

	msg := &EmailMessage{
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": "Asha", "UID": "dTE", "Token": "tok-en"},
	}
	require.NoError(t, msg.Render())
	assert.True(t, msg.HasContent())

	// both contents are wrapped in their base layout
	assert.Contains(t, msg.TextContent, "Hello Asha,")
	assert.Contains(t, msg.TextContent, "http://school.test/password-reset/dTE/tok-en")
	assert.Contains(t, msg.TextContent, "The Taarifa team")
	assert.Contains(t, msg.HTMLContent, "<title>Taarifa</title>")
	assert.Contains(t, msg.HTMLContent, `href="http://school.test/password-reset/dTE/tok-en"`)

	unknown := &EmailMessage{TemplateName: "welcome"}
	assert.EqualError(t, unknown.Render(), `unknown email template "welcome"`)

	plain := &EmailMessage{BodyStr: "hello"}
	require.NoError(t, plain.Render())
	assert.Equal(t, "hello", plain.TextContent)
}
