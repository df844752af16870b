package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studylab/core"
	logsvc "github.com/trezcool/studylab/services/logger"
)

func newTestConf() *core.Config {
	conf := core.NewTestConfig()
	conf.AppName = "StudyLab"
	conf.FrontendBaseURL = "https://studylab.test"
	return conf
}

func TestServiceMock_SendMessages(t *testing.T) {
	svc := NewServiceMock(newTestConf(), logsvc.NewNopLogger())

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Ada", Address: "ada@example.com"}},
			Subject:      "New message",
			TemplateName: "new_message",
			TemplateData: map[string]string{"Name": "Ada", "Title": "Hello", "Content": "Welcome aboard"},
		},
		&core.EmailMessage{Subject: "no recipients", TemplateName: "new_message", TemplateData: map[string]string{"Name": "?", "Title": "?", "Content": "?"}},
		&core.EmailMessage{To: []mail.Address{{Address: "bob@example.com"}}, Subject: "unknown template", TemplateName: "nope"},
	)

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Hi Ada,")
	assert.Contains(t, sent[0].TextContent, "Welcome aboard")
	assert.Contains(t, sent[0].TextContent, "https://studylab.test/me/messages")
	assert.NotEmpty(t, sent[0].HTMLContent)

	svc.Reset()
	assert.Empty(t, svc.Sent())
}

func TestConsoleService_Mime(t *testing.T) {
	svc := NewConsoleService(newTestConf(), logsvc.NewNopLogger())
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Ada", Address: "ada@example.com"}},
		Subject:      "Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": "Ada", "UID": "uid", "Token": "tok"},
	}

	body, err := svc.render(msg)
	require.NoError(t, err)
	assert.Contains(t, body, "Subject: [StudyLab] Reset\r\n")
	assert.Contains(t, body, `To: "Ada" <ada@example.com>`)
	assert.Contains(t, body, "multipart/alternative")
	assert.Contains(t, body, "https://studylab.test/password-reset/uid/tok")
	assert.Less(t, strings.Index(body, "text/plain"), strings.Index(body, "text/html"))

	body, err = svc.render(&core.EmailMessage{Subject: "nobody", TemplateName: "password_reset", TemplateData: msg.TemplateData})
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestSendgridService_Prepare(t *testing.T) {
	conf := newTestConf()
	conf.SendgridAPIKey = "key"
	svc := NewSendgridService(conf, logsvc.NewNopLogger())

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Ada", Address: "ada@example.com"}},
		Subject:     "Hi",
		TextContent: "plain",
	})
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[StudyLab] Hi", m.Personalizations[0].Subject)
	assert.Len(t, m.Personalizations[0].To, 1)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}

func TestNewService(t *testing.T) {
	conf := newTestConf()
	conf.SendgridAPIKey = "key"
	conf.TestMode = false
	assert.IsType(t, &sendgridService{}, NewService(conf, logsvc.NewNopLogger()))

	conf.SendgridAPIKey = ""
	assert.IsType(t, &consoleService{}, NewService(conf, logsvc.NewNopLogger()))
}
