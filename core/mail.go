package core

import (
	"bytes"
	"embed"
	htmltmpl "html/template"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

const emailTemplatesDir = "templates/email"

var (
	//go:embed templates/email
	templatesFS embed.FS

	emailTemplates     map[string]emailTemplate
	emailTemplatesErr  error
	emailTemplatesOnce sync.Once
)

// emailTemplate is the text/plain & text/html renditions of one email, each wrapped in its _base layout.
type emailTemplate struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

type (
	EmailMessage struct {
		To           []mail.Address
		Subject      string
		TemplateName string // file name without extension
		TemplateData interface{}

		// filled by Render
		TextContent string
		HTMLContent string
	}

	// EmailContext is the data the templates are executed with.
	EmailContext struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages in the background
		SendMessages(messages ...*EmailMessage)
	}
)

// Render executes the message template into TextContent & HTMLContent.
func (m *EmailMessage) Render(conf *Config) error {
	emailTemplatesOnce.Do(loadEmailTemplates)
	if emailTemplatesErr != nil {
		return emailTemplatesErr
	}
	tmpl, ok := emailTemplates[m.TemplateName]
	if !ok {
		return errors.Errorf("unknown email template %q", m.TemplateName)
	}

	data := EmailContext{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL, Data: m.TemplateData}
	var buf bytes.Buffer
	if tmpl.text != nil {
		if err := tmpl.text.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
		}
		m.TextContent = buf.String()
		buf.Reset()
	}
	if tmpl.html != nil {
		if err := tmpl.html.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" || m.HTMLContent != "" }

func loadEmailTemplates() {
	entries, err := templatesFS.ReadDir(emailTemplatesDir)
	if err != nil {
		emailTemplatesErr = errors.Wrap(err, "reading email templates")
		return
	}

	emailTemplates = make(map[string]emailTemplate)
	for _, e := range entries {
		ext := path.Ext(e.Name())
		name := strings.TrimSuffix(e.Name(), ext)
		if strings.HasPrefix(name, "_") {
			continue // layouts
		}

		files := []string{path.Join(emailTemplatesDir, "_base"+ext), path.Join(emailTemplatesDir, e.Name())}
		tmpl := emailTemplates[name]
		switch ext {
		case ".txt":
			tmpl.text, err = texttmpl.ParseFS(templatesFS, files...)
			if err == nil {
				tmpl.text.Option("missingkey=error")
			}
		case ".gohtml":
			tmpl.html, err = htmltmpl.ParseFS(templatesFS, files...)
			if err == nil {
				tmpl.html.Option("missingkey=error")
			}
		default:
			continue
		}
		if err != nil {
			emailTemplatesErr = errors.Wrapf(err, "parsing %s", e.Name())
			return
		}
		emailTemplates[name] = tmpl
	}
}
