package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(_ context.Context, notifs ...notification.Notification) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, n := range notifs {
		n.ID = uuid.New().String()
		repo.db.notifications[n.ID] = n
	}
	return nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	n, ok := repo.db.notifications[id]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	return n, nil
}

func (repo *notificationRepository) filter(filter notification.QueryFilter) []notification.Notification {
	var notifs []notification.Notification
	for _, n := range repo.db.notifications {
		if filter.Match(n) {
			notifs = append(notifs, n)
		}
	}
	return notifs
}

func (repo *notificationRepository) QueryNotifications(
	_ context.Context,
	filter notification.QueryFilter,
	page core.Page,
) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notifs := repo.filter(filter)
	sort.Slice(notifs, func(i, j int) bool {
		if !notifs[i].CreatedAt.Equal(notifs[j].CreatedAt) {
			return notifs[i].CreatedAt.After(notifs[j].CreatedAt)
		}
		return notifs[i].ID < notifs[j].ID
	})
	start, end := paginate(len(notifs), page)
	return notifs[start:end], nil
}

func (repo *notificationRepository) CountNotifications(_ context.Context, filter notification.QueryFilter) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return len(repo.filter(filter)), nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, userID string, at time.Time, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for id, n := range repo.db.notifications {
		if n.UserID != userID || n.IsRead() || (len(ids) > 0 && !core.StringInSlice(id, ids)) {
			continue
		}
		n.ReadAt = at
		repo.db.notifications[id] = n
		cnt++
	}
	return cnt, nil
}
