package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/notification"
)

const notificationColumns = `id, user_id, kind, title, body, link, read_at, created_at`

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Kind      string    `db:"kind"`
	Title     string    `db:"title"`
	Body      string    `db:"body"`
	Link      string    `db:"link"`
	ReadAt    null.Time `db:"read_at"`
	CreatedAt time.Time `db:"created_at"`
}

type notificationRepository struct {
	exec sqlx.ExtContext
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(exec sqlx.ExtContext) notification.Repository {
	return &notificationRepository{exec: exec}
}

func (repo notificationRepository) unboil(row notificationRow) notification.Notification {
	return notification.Notification{
		ID:        row.ID,
		UserID:    row.UserID,
		Kind:      notification.Kind(row.Kind),
		Title:     row.Title,
		Body:      row.Body,
		Link:      row.Link,
		ReadAt:    row.ReadAt.Time.UTC(),
		CreatedAt: row.CreatedAt.UTC(),
	}
}

// CreateNotifications inserts every notification with a single multi-row statement.
func (repo notificationRepository) CreateNotifications(ctx context.Context, notifs ...notification.Notification) error {
	if len(notifs) == 0 {
		return nil
	}
	values := make([]string, 0, len(notifs))
	args := make([]interface{}, 0, len(notifs)*8)
	for _, n := range notifs {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, uuid.New().String(), n.UserID, string(n.Kind), n.Title, n.Body, n.Link,
			nullTime(n.ReadAt), n.CreatedAt.UTC())
	}
	q := `INSERT INTO notification (` + notificationColumns + `) VALUES ` + strings.Join(values, ", ")
	if _, err := execAffected(ctx, repo.exec, q, args...); err != nil {
		return errors.Wrap(err, "inserting notifications")
	}
	return nil
}

func (repo notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	if !validID(id) {
		return notification.Notification{}, notification.ErrNotFound
	}
	var row notificationRow
	q := `SELECT ` + notificationColumns + ` FROM notification WHERE id = ?`
	if err := getRow(ctx, repo.exec, &row, q, id); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "finding notification by ID")
	}
	return repo.unboil(row), nil
}

func (repo notificationRepository) where(filter notification.QueryFilter) whereClause {
	var where whereClause
	if filter.UserID != "" {
		if validID(filter.UserID) {
			where.and("user_id = ?", filter.UserID)
		} else {
			where.and("FALSE")
		}
	}
	if filter.UnreadOnly {
		where.and("read_at IS NULL")
	}
	return where
}

func (repo notificationRepository) QueryNotifications(
	ctx context.Context,
	filter notification.QueryFilter,
	page core.Page,
) ([]notification.Notification, error) {
	where := repo.where(filter)
	limit, limitArgs := paginate(page)
	q := `SELECT ` + notificationColumns + ` FROM notification` + where.String() + ` ORDER BY created_at DESC, id ASC` + limit

	var rows []notificationRow
	if err := selectRows(ctx, repo.exec, &rows, q, append(where.args, limitArgs...)...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, repo.unboil(row))
	}
	return notifs, nil
}

func (repo notificationRepository) CountNotifications(ctx context.Context, filter notification.QueryFilter) (int, error) {
	where := repo.where(filter)
	var cnt int
	if err := getRow(ctx, repo.exec, &cnt, `SELECT COUNT(*) FROM notification`+where.String(), where.args...); err != nil {
		return 0, errors.Wrap(err, "counting notifications")
	}
	return cnt, nil
}

func (repo notificationRepository) MarkRead(ctx context.Context, userID string, at time.Time, ids ...string) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	var where whereClause
	where.and("user_id = ?", userID)
	where.and("read_at IS NULL")
	if len(ids) > 0 {
		where.and("id = ANY(?::uuid[])", validIDs(ids))
	}

	cnt, err := execAffected(ctx, repo.exec, `UPDATE notification SET read_at = ?`+where.String(), append([]interface{}{at.UTC()}, where.args...)...)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications as read")
	}
	return cnt, nil
}
