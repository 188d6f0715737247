package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/taarifa/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func testConfig() *core.Config {
	return &core.Config{
		AppName:          "Taarifa",
		TestMode:         true,
		FrontendBaseURL:  "http://school.test",
		DefaultFromEmail: "noreply@school.test",
	}
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := testConfig()
	require.NoError(t, core.ParseEmailTemplates(conf))
	svc := NewConsoleServiceMock(conf, nopLogger{})

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Asha", Address: "asha@school.test"}},
			Subject:      "Reset your password",
			TemplateName: "password_reset",
			TemplateData: map[string]string{"Name": "Asha", "UID": "dTE", "Token": "tok-en"},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "hello"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "http://school.test/password-reset/dTE/tok-en")
	assert.Contains(t, sent[0].TextContent, "The Taarifa team")
	assert.Contains(t, sent[0].HTMLContent, "Hello Asha")
}

func TestSendgridService_Prepare(t *testing.T) {
	svc := NewSendgridService(testConfig(), nopLogger{}).(*sendgridService)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Asha", Address: "asha@school.test"}},
		Cc:          []mail.Address{{Address: "office@school.test"}},
		Subject:     "Hello",
		TextContent: "hi",
	})

	assert.Equal(t, "noreply@school.test", m.From.Address)
	assert.Equal(t, "Taarifa", m.From.Name)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Taarifa] Hello", m.Personalizations[0].Subject)
	assert.Len(t, m.Personalizations[0].To, 1)
	assert.Len(t, m.Personalizations[0].CC, 1)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
