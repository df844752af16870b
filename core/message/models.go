package message

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
)

// Message types
const (
	TypeAnnouncement = "ANNOUNCEMENT" // visible to every user
	TypeDirect       = "DIRECT"
	TypeSystem       = "SYSTEM"
)

type Message struct {
	ID          string      `json:"id"`
	Type        string      `json:"messageType"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	SenderID    null.String `json:"senderId"`
	RecipientID null.String `json:"recipientId"`
	CreatedAt   time.Time   `json:"createdAt"` // UTC
}

// VisibleTo reports whether userID may see the message.
func (m Message) VisibleTo(userID string) bool {
	switch m.Type {
	case TypeAnnouncement:
		return true
	case TypeDirect, TypeSystem:
		return m.RecipientID.Valid && m.RecipientID.String == userID
	}
	return false
}

// UserMessage is a Message along with its read state for one user.
type UserMessage struct {
	Message
	IsRead bool      `json:"isRead"`
	ReadAt null.Time `json:"readAt"`
}

// AdminMessage is a Message along with its read count.
type AdminMessage struct {
	Message
	ReadCount int `json:"readCount"`
}

type (
	ListResult struct {
		Data []UserMessage `json:"data"`
		core.Pagination
	}

	AdminListResult struct {
		Data []AdminMessage `json:"data"`
		core.Pagination
	}
)

// NewAnnouncement contains information needed to broadcast an announcement.
type NewAnnouncement struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=10000"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.SanitizeText(na.Title)
	na.Content = core.SanitizeText(na.Content)
	return validate.Struct(na)
}

// NewDirect contains information needed to message one user.
type NewDirect struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Content     string `json:"content" validate:"required,max=10000"`
}

func (nd *NewDirect) Validate(validate *validator.Validate) error {
	nd.RecipientID = core.CleanString(nd.RecipientID)
	nd.Title = core.SanitizeText(nd.Title)
	nd.Content = core.SanitizeText(nd.Content)
	return validate.Struct(nd)
}

type QueryFilter struct {
	Type string `query:"messageType" json:"messageType" validate:"omitempty,msgtype"`
}

func (qf *QueryFilter) Clean() {
	qf.Type = core.CleanString(qf.Type)
}
