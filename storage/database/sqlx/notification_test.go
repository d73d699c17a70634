package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/notification"
)

const notifUserID = "4a7e5fd7-08b4-4a50-9d6c-28bb3d3e3b6f"

func TestNotificationRepository_CreateNotifications(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(db)
	now := core.Now()

	mock.ExpectExec(`INSERT INTO notification \(.+\) VALUES \(\$1, .+, \$8\), \(\$9, .+, \$16\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.CreateNotifications(context.Background(),
		notification.Notification{UserID: notifUserID, Kind: notification.KindDecision, Title: "a", CreatedAt: now},
		notification.Notification{UserID: notifUserID, Kind: notification.KindDecision, Title: "b", CreatedAt: now},
	)
	require.NoError(t, err)

	// nothing to insert
	require.NoError(t, repo.CreateNotifications(context.Background()))
}

func TestNotificationRepository_QueryNotifications(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(db)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM notification WHERE user_id = \$1 AND read_at IS NULL ORDER BY created_at DESC, id ASC LIMIT \$2`).
		WithArgs(notifUserID, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "kind", "title", "body", "link", "read_at", "created_at"}).
			AddRow("9b2f3c4d-1e2f-4a3b-8c4d-5e6f7a8b9c0d", notifUserID, "decision", "Decision", "", "/s/1", nil, at))

	notifs, err := repo.QueryNotifications(context.Background(),
		notification.QueryFilter{UserID: notifUserID, UnreadOnly: true}, core.Page{Limit: 5})
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.False(t, notifs[0].IsRead())
	assert.Equal(t, notification.KindDecision, notifs[0].Kind)
}

func TestNotificationRepository_CountNotifications(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notification WHERE user_id = \$1 AND read_at IS NULL`).
		WithArgs(notifUserID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	cnt, err := repo.CountNotifications(context.Background(), notification.QueryFilter{UserID: notifUserID, UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 3, cnt)
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(db)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE notification SET read_at = \$1 WHERE user_id = \$2 AND read_at IS NULL$`).
		WithArgs(at, notifUserID).
		WillReturnResult(sqlmock.NewResult(0, 4))
	cnt, err := repo.MarkRead(context.Background(), notifUserID, at)
	require.NoError(t, err)
	assert.Equal(t, 4, cnt)

	mock.ExpectExec(`UPDATE notification SET read_at = \$1 WHERE .+ AND id = ANY\(\$3::uuid\[\]\)`).
		WithArgs(at, notifUserID, "{\"9b2f3c4d-1e2f-4a3b-8c4d-5e6f7a8b9c0d\"}").
		WillReturnResult(sqlmock.NewResult(0, 1))
	cnt, err = repo.MarkRead(context.Background(), notifUserID, at, "9b2f3c4d-1e2f-4a3b-8c4d-5e6f7a8b9c0d")
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
}
