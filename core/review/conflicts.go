package review

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
)

var (
	// public email providers never indicate a shared institution
	publicEmailDomains = []string{
		"gmail.com", "googlemail.com", "yahoo.com", "yahoo.fr", "hotmail.com", "outlook.com", "live.com",
		"msn.com", "icloud.com", "me.com", "aol.com", "protonmail.com", "proton.me", "gmx.com", "gmx.de",
		"mail.com", "yandex.com", "qq.com", "163.com", "zoho.com",
	}

	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
)

// ConflictInput is everything conflict detection looks at for one reviewer.
type ConflictInput struct {
	Reviewer    user.User
	Authors     []submission.Author
	AuthorUsers []user.User // accounts of the authors, for their declared conflicts
	// Coauthored are other submissions co-authored by the reviewer within the lookback window.
	Coauthored []submission.Submission
}

// DetectConflicts lists the conflicts of interest between a reviewer and the authors of a submission.
func DetectConflicts(in ConflictInput) []Conflict {
	var conflicts []Conflict
	add := func(kind ConflictKind, severity Severity, detail string) {
		conflicts = append(conflicts, Conflict{Kind: kind, Severity: severity, Detail: detail})
	}

	rev := in.Reviewer
	revAff := normalizeAffiliation(rev.Affiliation)
	revDomain := emailDomain(rev.Email)
	coauthors := coauthorsOf(rev, in.Coauthored)

	for _, a := range in.Authors {
		if a.Is(rev) {
			add(ConflictSelf, SeverityHard, "reviewer is an author of the submission")
			continue
		}
		if revAff != "" && normalizeAffiliation(a.Affiliation) == revAff {
			add(ConflictInstitution, SeverityHard, fmt.Sprintf("shares an affiliation with %s", a.Name))
		} else if d := emailDomain(a.Email); d != "" && d == revDomain && !core.StringInSlice(d, publicEmailDomains) {
			add(ConflictEmailDomain, SeveritySoft, fmt.Sprintf("shares the email domain %s with %s", d, a.Name))
		}
		if title, ok := coauthors.lookup(a); ok {
			add(ConflictCoauthor, SeverityHard, fmt.Sprintf("co-authored %q with %s", title, a.Name))
		}
		if declares(rev.DeclaredConflicts, a.Email, a.UserID) {
			add(ConflictDeclared, SeverityHard, fmt.Sprintf("reviewer declared a conflict with %s", a.Name))
		}
	}

	for _, au := range in.AuthorUsers {
		if au.ID == rev.ID {
			continue
		}
		if declares(au.DeclaredConflicts, rev.Email, rev.ID) {
			add(ConflictDeclared, SeverityHard, fmt.Sprintf("%s declared a conflict with the reviewer", au.Name))
		}
	}
	return conflicts
}

// HasHard reports whether any conflict is a hard one.
func HasHard(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == SeverityHard {
			return true
		}
	}
	return false
}

func soft(conflicts []Conflict) []Conflict {
	var out []Conflict
	for _, c := range conflicts {
		if c.Severity == SeveritySoft {
			out = append(out, c)
		}
	}
	return out
}

type coauthorIndex map[string]string // author key -> title of a shared submission

func (idx coauthorIndex) lookup(a submission.Author) (string, bool) {
	for _, key := range authorKeys(a) {
		if title, ok := idx[key]; ok {
			return title, true
		}
	}
	return "", false
}

// coauthorsOf indexes every co-author of `rev` in `subs`.
func coauthorsOf(rev user.User, subs []submission.Submission) coauthorIndex {
	idx := make(coauthorIndex)
	for _, s := range subs {
		var isAuthor bool
		for _, a := range s.Authors {
			if a.Is(rev) {
				isAuthor = true
				break
			}
		}
		if !isAuthor {
			continue
		}
		for _, a := range s.Authors {
			if a.Is(rev) {
				continue
			}
			for _, key := range authorKeys(a) {
				if _, ok := idx[key]; !ok {
					idx[key] = s.Title
				}
			}
		}
	}
	return idx
}

func authorKeys(a submission.Author) []string {
	var keys []string
	if a.Email != "" {
		keys = append(keys, "email:"+strings.ToLower(a.Email))
	}
	if a.UserID != "" {
		keys = append(keys, "id:"+a.UserID)
	}
	return keys
}

func declares(declared []string, email, userID string) bool {
	for _, d := range declared {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if (email != "" && d == strings.ToLower(email)) || (userID != "" && d == strings.ToLower(userID)) {
			return true
		}
	}
	return false
}

func normalizeAffiliation(aff string) string {
	aff = strings.ToLower(aff)
	aff = strings.TrimPrefix(aff, "the ")
	return strings.Trim(nonAlnum.ReplaceAllString(aff, " "), " ")
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
