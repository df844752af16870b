package emailsvc

import (
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
)

// consoleService writes emails to the logger instead of sending them; used in development.
type consoleService struct {
	conf       *core.Config
	logger     core.Logger
	from       mail.Address
	subjPrefix string
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) *consoleService {
	return &consoleService{
		conf:       conf,
		logger:     logger,
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			body, err := svc.render(msg)
			if err != nil {
				svc.logger.Error("rendering email", err, map[string]interface{}{"template": msg.TemplateName})
				return
			}
			if body != "" {
				svc.logger.Info("email", map[string]interface{}{"body": body})
			}
		}(msg)
	}
}

// render returns the MIME body of msg, or "" when there is nothing to send.
func (svc *consoleService) render(msg *core.EmailMessage) (string, error) {
	if err := msg.Render(svc.conf); err != nil {
		return "", err
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return "", nil
	}
	return svc.mime(*msg)
}

func (svc *consoleService) mime(msg core.EmailMessage) (string, error) {
	to := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		to = append(to, a.String())
	}

	body := new(strings.Builder)
	w := multipart.NewWriter(body)
	hdr := []struct{ key, val string }{
		{"From", svc.from.String()},
		{"To", strings.Join(to, ", ")},
		{"Subject", svc.subjPrefix + msg.Subject},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "multipart/alternative; boundary=" + w.Boundary()},
	}
	for _, h := range hdr {
		_, _ = fmt.Fprintf(body, "%s: %s\r\n", h.key, h.val)
	}
	body.WriteString("\r\n")

	// plain text first: clients display the last part they support
	for _, part := range [][2]string{{"text/plain", msg.TextContent}, {"text/html", msg.HTMLContent}} {
		if part[1] == "" {
			continue
		}
		pw, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {part[0] + "; charset=utf-8"}})
		if err != nil {
			return "", errors.Wrapf(err, "creating %s part", part[0])
		}
		_, _ = fmt.Fprintf(pw, "%s\r\n", part[1])
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "closing multipart body")
	}
	return body.String(), nil
}

// ServiceMock renders messages synchronously and keeps them for assertions.
type ServiceMock struct {
	consoleService

	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*ServiceMock)(nil)

func NewServiceMock(conf *core.Config, logger core.Logger) *ServiceMock {
	return &ServiceMock{consoleService: *NewConsoleService(conf, logger)}
}

func (svc *ServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		body, err := svc.render(msg)
		if err != nil {
			svc.logger.Error("rendering email", err)
			continue
		}
		if body == "" {
			continue
		}
		svc.mu.Lock()
		svc.sent = append(svc.sent, *msg)
		svc.mu.Unlock()
	}
}

// Sent returns a copy of the messages sent so far.
func (svc *ServiceMock) Sent() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}

func (svc *ServiceMock) Reset() {
	svc.mu.Lock()
	svc.sent = nil
	svc.mu.Unlock()
}
