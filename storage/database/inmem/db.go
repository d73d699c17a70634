package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/decision"
	"github.com/trezcool/jarida/core/file"
	"github.com/trezcool/jarida/core/notification"
	"github.com/trezcool/jarida/core/production"
	"github.com/trezcool/jarida/core/publication"
	"github.com/trezcool/jarida/core/review"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
)

// DB is an in-memory datastore. Every repository of this package shares its lock.
type DB struct {
	mu sync.RWMutex

	users         map[string]user.User
	submissions   map[string]submission.Submission
	statusChanges []submission.StatusChange
	files         map[string]file.Version
	assignments   map[string]review.Assignment
	reviews       map[string]review.Review
	decisions     map[string]decision.Decision
	jobs          map[string]production.Job // by submission ID
	issues        map[string]publication.Issue
	articles      map[string]publication.Article
	notifications map[string]notification.Notification
}

func Open() *DB {
	return &DB{
		users:         make(map[string]user.User),
		submissions:   make(map[string]submission.Submission),
		files:         make(map[string]file.Version),
		assignments:   make(map[string]review.Assignment),
		reviews:       make(map[string]review.Review),
		decisions:     make(map[string]decision.Decision),
		jobs:          make(map[string]production.Job),
		issues:        make(map[string]publication.Issue),
		articles:      make(map[string]publication.Article),
		notifications: make(map[string]notification.Notification),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	fresh := Open()

	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = fresh.users
	db.submissions = fresh.submissions
	db.statusChanges = nil
	db.files = fresh.files
	db.assignments = fresh.assignments
	db.reviews = fresh.reviews
	db.decisions = fresh.decisions
	db.jobs = fresh.jobs
	db.issues = fresh.issues
	db.articles = fresh.articles
	db.notifications = fresh.notifications
}

// fieldGetter returns the value of `field` for the i-th element of a slice being sorted.
type fieldGetter func(i int, field string) interface{}

// sortByOrderings sorts a slice of `n` items using orderings (falling back to `-created_at`).
func sortByOrderings(n int, swap func(i, j int), get fieldGetter, orderings []core.DBOrdering) {
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.Stable(orderedSlice{n: n, swap: swap, get: get, orderings: orderings})
}

type orderedSlice struct {
	n         int
	swap      func(i, j int)
	get       fieldGetter
	orderings []core.DBOrdering
}

func (s orderedSlice) Len() int      { return s.n }
func (s orderedSlice) Swap(i, j int) { s.swap(i, j) }
func (s orderedSlice) Less(i, j int) bool {
	for _, ord := range s.orderings {
		c := compare(s.get(i, ord.Field), s.get(j, ord.Field))
		if c == 0 {
			continue
		}
		if ord.Ascending {
			return c < 0
		}
		return c > 0
	}
	return false
}

// withIDTiebreak appends an ascending ID ordering so that pages are stable.
func withIDTiebreak(orderings []core.DBOrdering) []core.DBOrdering {
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "created_at"}}
	}
	return append(orderings[:len(orderings):len(orderings)], core.DBOrdering{Field: "id", Ascending: true})
}

func compare(a, b interface{}) int {
	switch va := a.(type) {
	case string:
		vb, _ := b.(string)
		return strings.Compare(strings.ToLower(va), strings.ToLower(vb))
	case int:
		vb, _ := b.(int)
		return va - vb
	case bool:
		vb, _ := b.(bool)
		switch {
		case va == vb:
			return 0
		case !va:
			return -1
		default:
			return 1
		}
	case time.Time:
		vb, _ := b.(time.Time)
		switch {
		case va.Equal(vb):
			return 0
		case va.Before(vb):
			return -1
		default:
			return 1
		}
	}
	return 0
}

// paginate returns the [start, end) bounds of `page` over `n` items.
func paginate(n int, page core.Page) (int, int) {
	if page.Offset >= n {
		return n, n
	}
	end := n
	if page.Limit > 0 && page.Offset+page.Limit < n {
		end = page.Offset + page.Limit
	}
	return page.Offset, end
}
