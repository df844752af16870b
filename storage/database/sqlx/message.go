package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/message"
)

const messageColumns = "id, message_type, title, content, sender_id, recipient_id, created_at"

// visibleToUser restricts messages to those the user may see.
const visibleToUser = "(m.message_type = '" + message.TypeAnnouncement + "' OR m.recipient_id = ?)"

type (
	messageRow struct {
		ID          string      `db:"id"`
		Type        string      `db:"message_type"`
		Title       string      `db:"title"`
		Content     string      `db:"content"`
		SenderID    null.String `db:"sender_id"`
		RecipientID null.String `db:"recipient_id"`
		CreatedAt   time.Time   `db:"created_at"`
	}

	userMessageRow struct {
		messageRow
		ReadAt null.Time `db:"read_at"`
	}

	adminMessageRow struct {
		messageRow
		ReadCount int `db:"read_count"`
	}
)

func (r messageRow) toModel() message.Message {
	return message.Message{
		ID:          r.ID,
		Type:        r.Type,
		Title:       r.Title,
		Content:     r.Content,
		SenderID:    r.SenderID,
		RecipientID: r.RecipientID,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type messageRepository struct {
	repository
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(exec core.DBExecutor) *messageRepository {
	return &messageRepository{repository{exec: exec}}
}

func (repo messageRepository) CreateMessage(ctx context.Context, msg message.Message, exec ...core.DBExecutor) (message.Message, error) {
	ex := repo.getExec(exec)
	msg.ID = newID()
	msg.CreatedAt = msg.CreatedAt.UTC()
	_, err := ex.ExecContext(ctx, ex.Rebind(`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		msg.ID, msg.Type, msg.Title, msg.Content, msg.SenderID, msg.RecipientID, msg.CreatedAt)
	if err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo messageRepository) GetMessage(ctx context.Context, id string, exec ...core.DBExecutor) (message.Message, error) {
	ex := repo.getExec(exec)
	var row messageRow
	err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), id)
	if err != nil {
		return message.Message{}, trapNoRowsErr(err, message.ErrNotFound, "getting message")
	}
	return row.toModel(), nil
}

func (repo messageRepository) QueryUserMessages(ctx context.Context, userID string, page core.Page, exec ...core.DBExecutor) ([]message.UserMessage, int, error) {
	ex := repo.getExec(exec)

	var total int
	err := sqlx.GetContext(ctx, ex, &total, ex.Rebind(`SELECT COUNT(*) FROM messages m WHERE `+visibleToUser), userID)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting messages")
	}

	q := sq.Select("m.id", "m.message_type", "m.title", "m.content", "m.sender_id", "m.recipient_id", "m.created_at", "r.read_at").
		From("messages m").
		LeftJoin("message_reads r ON r.message_id = m.id AND r.user_id = ?", userID).
		Where(visibleToUser, userID).
		OrderBy("m.created_at DESC", "m.id DESC").
		Limit(page.Limit()).
		Offset(page.Offset())
	query, args, err := toSQL(ex, q)
	if err != nil {
		return nil, 0, err
	}

	var rows []userMessageRow
	if err = sqlx.SelectContext(ctx, ex, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying messages")
	}
	msgs := make([]message.UserMessage, 0, len(rows))
	for _, r := range rows {
		um := message.UserMessage{Message: r.toModel(), IsRead: r.ReadAt.Valid, ReadAt: r.ReadAt}
		if um.ReadAt.Valid {
			um.ReadAt.Time = um.ReadAt.Time.UTC()
		}
		msgs = append(msgs, um)
	}
	return msgs, total, nil
}

func (repo messageRepository) CountUnread(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	ex := repo.getExec(exec)
	var n int
	err := sqlx.GetContext(ctx, ex, &n, ex.Rebind(
		`SELECT COUNT(*) FROM messages m
		WHERE `+visibleToUser+`
		AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = ?)`), userID, userID)
	return n, errors.Wrap(err, "counting unread messages")
}

func (repo messageRepository) CreateRead(ctx context.Context, messageID, userID string, at time.Time, exec ...core.DBExecutor) (bool, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(
		`INSERT INTO message_reads (message_id, user_id, read_at) VALUES (?, ?, ?)
		ON CONFLICT (message_id, user_id) DO NOTHING`), messageID, userID, at.UTC())
	if err != nil {
		return false, errors.Wrap(err, "inserting message read")
	}
	n, err := affectedRows(res, "inserting message read")
	return n > 0, err
}

func (repo messageRepository) QueryMessages(ctx context.Context, filter message.QueryFilter, page core.Page, exec ...core.DBExecutor) ([]message.AdminMessage, int, error) {
	ex := repo.getExec(exec)

	where := sq.And{}
	if filter.Type != "" {
		where = append(where, sq.Eq{"m.message_type": filter.Type})
	}

	query, args, err := toSQL(ex, sq.Select("COUNT(*)").From("messages m").Where(where))
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err = sqlx.GetContext(ctx, ex, &total, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting messages")
	}

	q := sq.Select("m.id", "m.message_type", "m.title", "m.content", "m.sender_id", "m.recipient_id", "m.created_at").
		Column("(SELECT COUNT(*) FROM message_reads r WHERE r.message_id = m.id) AS read_count").
		From("messages m").
		Where(where).
		OrderBy("m.created_at DESC", "m.id DESC").
		Limit(page.Limit()).
		Offset(page.Offset())
	if query, args, err = toSQL(ex, q); err != nil {
		return nil, 0, err
	}

	var rows []adminMessageRow
	if err = sqlx.SelectContext(ctx, ex, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying messages")
	}
	msgs := make([]message.AdminMessage, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, message.AdminMessage{Message: r.toModel(), ReadCount: r.ReadCount})
	}
	return msgs, total, nil
}
