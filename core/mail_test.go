package core

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMessage_Render(t *testing.T) {
	conf := NewTestConfig()
	conf.AppName = "StudyLab"
	conf.FrontendBaseURL = "https://studylab.test"

	msg := &EmailMessage{
		To:           []mail.Address{{Address: "ada@example.com"}},
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": "Ada", "UID": "uid", "Token": "tok"},
	}
	require.False(t, msg.HasContent())
	require.NoError(t, msg.Render(conf))
	assert.True(t, msg.HasContent())
	assert.Contains(t, msg.TextContent, "StudyLab")
	assert.Contains(t, msg.HTMLContent, "<html")

	unknown := &EmailMessage{TemplateName: "nope"}
	assert.EqualError(t, unknown.Render(conf), `unknown email template "nope"`)

	missing := &EmailMessage{TemplateName: "new_message", TemplateData: map[string]string{"Name": "Ada"}}
	assert.Error(t, missing.Render(conf), "missing template keys fail")
}
