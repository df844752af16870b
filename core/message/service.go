package message

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("message not found")
	ErrRecipientNotFound = core.NewNotFoundError("recipient not found")
)

const notificationTemplate = "new_message"

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message, exec ...core.DBExecutor) (Message, error)
		GetMessage(ctx context.Context, id string, exec ...core.DBExecutor) (Message, error)
		// QueryUserMessages returns the page of messages visible to userID, newest first, and their total count.
		QueryUserMessages(ctx context.Context, userID string, page core.Page, exec ...core.DBExecutor) ([]UserMessage, int, error)
		// CountUnread counts the messages visible to userID that userID has not read.
		CountUnread(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)
		// CreateRead records that userID read messageID.
		// It reports false, without error, when the read was already recorded.
		CreateRead(ctx context.Context, messageID, userID string, at time.Time, exec ...core.DBExecutor) (bool, error)
		QueryMessages(ctx context.Context, filter QueryFilter, page core.Page, exec ...core.DBExecutor) ([]AdminMessage, int, error)
	}

	Service struct {
		repo    Repository
		users   user.Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, users user.Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

// CreateAnnouncement broadcasts a message to every user.
func (svc *Service) CreateAnnouncement(ctx context.Context, senderID string, na NewAnnouncement) (Message, error) {
	return svc.repo.CreateMessage(ctx, Message{
		Type:      TypeAnnouncement,
		Title:     core.SanitizeText(na.Title),
		Content:   core.SanitizeText(na.Content),
		SenderID:  null.NewString(senderID, senderID != ""),
		CreatedAt: time.Now().UTC(),
	})
}

// CreateDirect sends a message from senderID to nd.RecipientID, and notifies the recipient by email.
func (svc *Service) CreateDirect(ctx context.Context, senderID string, nd NewDirect) (Message, error) {
	return svc.createPersonal(ctx, TypeDirect, senderID, nd.RecipientID, nd.Title, nd.Content)
}

// CreateSystem sends a message from the system to recipientID, and notifies the recipient by email.
func (svc *Service) CreateSystem(ctx context.Context, recipientID, title, content string) (Message, error) {
	return svc.createPersonal(ctx, TypeSystem, "", recipientID, title, content)
}

// SendSystem is CreateSystem without the created message.
func (svc *Service) SendSystem(ctx context.Context, recipientID, title, content string) error {
	_, err := svc.CreateSystem(ctx, recipientID, title, content)
	return err
}

func (svc *Service) createPersonal(ctx context.Context, typ, senderID, recipientID, title, content string) (Message, error) {
	recipient, err := svc.users.GetUser(ctx, user.GetFilter{ID: recipientID})
	if err != nil {
		if core.IsNotFound(err) {
			return Message{}, ErrRecipientNotFound
		}
		return Message{}, errors.Wrap(err, "getting recipient")
	}

	msg, err := svc.repo.CreateMessage(ctx, Message{
		Type:        typ,
		Title:       core.SanitizeText(title),
		Content:     core.SanitizeText(content),
		SenderID:    null.NewString(senderID, senderID != ""),
		RecipientID: null.StringFrom(recipient.ID),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Message{}, err
	}
	svc.notify(recipient, msg)
	return msg, nil
}

// notify emails the recipient about msg, if it has an email address.
func (svc *Service) notify(recipient user.User, msg Message) {
	if svc.mailSvc == nil || recipient.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: recipient.Name, Address: recipient.Email}},
		Subject:      msg.Title,
		TemplateName: notificationTemplate,
		TemplateData: map[string]string{
			"Name":    recipient.Name,
			"Title":   msg.Title,
			"Content": msg.Content,
		},
	})
}

func (svc *Service) ListForUser(ctx context.Context, userID string, page core.Page) (ListResult, error) {
	page.Clean()
	msgs, total, err := svc.repo.QueryUserMessages(ctx, userID, page)
	if err != nil {
		return ListResult{}, err
	}
	if msgs == nil {
		msgs = []UserMessage{}
	}
	return ListResult{Data: msgs, Pagination: core.NewPagination(page, total)}, nil
}

func (svc *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnread(ctx, userID)
}

// MarkAsRead records that userID read the message.
// It reports alreadyRead when an earlier call, even a concurrent one, recorded it first.
func (svc *Service) MarkAsRead(ctx context.Context, messageID, userID string) (alreadyRead bool, err error) {
	msg, err := svc.repo.GetMessage(ctx, messageID)
	if err != nil {
		return false, err
	}
	if !msg.VisibleTo(userID) {
		return false, core.ErrAccessDenied
	}

	created, err := svc.repo.CreateRead(ctx, msg.ID, userID, time.Now().UTC())
	if err != nil {
		return false, errors.Wrap(err, "creating message read")
	}
	if !created {
		messagesRead.WithLabelValues(readResultAlreadyRead).Inc()
		return true, nil
	}
	messagesRead.WithLabelValues(readResultNew).Inc()
	return false, nil
}

// ListAll returns every message, newest first, with its read count.
func (svc *Service) ListAll(ctx context.Context, filter QueryFilter, page core.Page) (AdminListResult, error) {
	filter.Clean()
	page.Clean()
	msgs, total, err := svc.repo.QueryMessages(ctx, filter, page)
	if err != nil {
		return AdminListResult{}, err
	}
	if msgs == nil {
		msgs = []AdminMessage{}
	}
	return AdminListResult{Data: msgs, Pagination: core.NewPagination(page, total)}, nil
}
