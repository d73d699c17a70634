package notification

import "time"

type Kind string

const (
	KindSubmissionReceived Kind = "submission_received"
	KindStatusChanged      Kind = "status_changed"
	KindEditorAssigned     Kind = "editor_assigned"
	KindReviewInvitation   Kind = "review_invitation"
	KindReviewResponse     Kind = "review_response"
	KindReviewReminder     Kind = "review_reminder"
	KindReviewSubmitted    Kind = "review_submitted"
	KindDecision           Kind = "decision"
	KindProductionUpdate   Kind = "production_update"
	KindArticlePublished   Kind = "article_published"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Link      string    `json:"link"`
	ReadAt    time.Time `json:"read_at"`    // UTC, zero when unread
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (n Notification) IsRead() bool { return !n.ReadAt.IsZero() }

// Message is what gets sent to every recipient of a notification.
type Message struct {
	Kind  Kind
	Title string
	Body  string
	Link  string // relative to the frontend base URL

	// Template is the email template, defaults to "notification".
	Template string
	// Data is passed to the email template along with the recipient Name, Title, Body and Link.
	Data map[string]interface{}
	// NoEmail only stores the in-app notification.
	NoEmail bool
}

type QueryFilter struct {
	UserID     string
	UnreadOnly bool
}

// Match applies the filter to a single notification (used by in-memory repositories).
func (qf QueryFilter) Match(n Notification) bool {
	if qf.UserID != "" && n.UserID != qf.UserID {
		return false
	}
	if qf.UnreadOnly && n.IsRead() {
		return false
	}
	return true
}
