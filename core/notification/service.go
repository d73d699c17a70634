package notification

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/user"
)

var ErrNotFound = core.NewNotFoundError("notification not found")

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notifs ...Notification) error
		GetNotification(ctx context.Context, id string) (Notification, error)
		// QueryNotifications returns the most recent notifications first.
		QueryNotifications(ctx context.Context, filter QueryFilter, page core.Page) ([]Notification, error)
		CountNotifications(ctx context.Context, filter QueryFilter) (int, error)
		// MarkRead marks the listed notifications of the user as read, all of them when no ID is given.
		MarkRead(ctx context.Context, userID string, at time.Time, ids ...string) (int, error)
	}

	Service interface {
		// Notify stores one notification per user and emails them. Email failures are logged, never returned.
		Notify(ctx context.Context, users []user.User, msg Message) error
		List(ctx context.Context, userID string, unreadOnly bool, page core.Page) ([]Notification, error)
		UnreadCount(ctx context.Context, userID string) (int, error)
		MarkRead(ctx context.Context, id, userID string) error
		MarkAllRead(ctx context.Context, userID string) (int, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{repo: repo, mailSvc: mailSvc}
}

func (svc *service) Notify(ctx context.Context, users []user.User, msg Message) error {
	now := core.Now()
	notifs := make([]Notification, 0, len(users))
	messages := make([]*core.EmailMessage, 0, len(users))
	seen := make(map[string]struct{}, len(users))

	for _, usr := range users {
		if _, ok := seen[usr.ID]; ok || usr.ID == "" {
			continue
		}
		seen[usr.ID] = struct{}{}

		notifs = append(notifs, Notification{
			UserID:    usr.ID,
			Kind:      msg.Kind,
			Title:     msg.Title,
			Body:      msg.Body,
			Link:      msg.Link,
			CreatedAt: now,
		})
		if msg.NoEmail || usr.Email == "" || !usr.Active() {
			continue
		}
		messages = append(messages, svc.emailFor(usr, msg))
	}
	if len(notifs) == 0 {
		return nil
	}

	if err := svc.repo.CreateNotifications(ctx, notifs...); err != nil {
		return errors.Wrap(err, "creating notifications")
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	return nil
}

func (svc *service) emailFor(usr user.User, msg Message) *core.EmailMessage {
	tmpl := msg.Template
	if tmpl == "" {
		tmpl = "notification"
	}
	data := map[string]interface{}{
		"Name":  usr.Name,
		"Title": msg.Title,
		"Body":  msg.Body,
		"Link":  msg.Link,
	}
	for k, v := range msg.Data {
		data[k] = v
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      msg.Title,
		TemplateName: tmpl,
		TemplateData: data,
	}
}

func (svc *service) List(ctx context.Context, userID string, unreadOnly bool, page core.Page) ([]Notification, error) {
	page.Clean()
	return svc.repo.QueryNotifications(ctx, QueryFilter{UserID: userID, UnreadOnly: unreadOnly}, page)
}

func (svc *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountNotifications(ctx, QueryFilter{UserID: userID, UnreadOnly: true})
}

func (svc *service) MarkRead(ctx context.Context, id, userID string) error {
	notif, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if notif.UserID != userID {
		return ErrNotFound
	}
	if notif.IsRead() {
		return nil
	}
	_, err = svc.repo.MarkRead(ctx, userID, core.Now(), id)
	return err
}

func (svc *service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return svc.repo.MarkRead(ctx, userID, core.Now())
}
