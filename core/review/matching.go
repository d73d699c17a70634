package review

import (
	"math"
	"sort"
	"strings"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
)

const defaultRating = 2.5

// ReviewerStats is the review history of a reviewer.
type ReviewerStats struct {
	Active    int // invited or accepted
	Completed int
	Declined  int
	Overdue   int
	RatingSum int
	Rated     int
}

// CompletionRate is completed / (completed + declined + overdue), or -1 without history.
func (st ReviewerStats) CompletionRate() float64 {
	total := st.Completed + st.Declined + st.Overdue
	if total == 0 {
		return -1
	}
	return float64(st.Completed) / float64(total)
}

// AvgRating is the mean editor rating of the reviewer's reviews, 2.5 when never rated.
func (st ReviewerStats) AvgRating() float64 {
	if st.Rated == 0 {
		return defaultRating
	}
	return float64(st.RatingSum) / float64(st.Rated)
}

// ScoreReviewer rates how well `rev` fits `s`, out of 100.
func ScoreReviewer(s submission.Submission, rev user.User, stats ReviewerStats) (Breakdown, []string) {
	var (
		b       Breakdown
		matched []string
	)

	if len(s.Keywords) > 0 {
		expertise := make(map[string]struct{}, len(rev.Expertise))
		for _, e := range rev.Expertise {
			expertise[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
		}
		for _, kw := range s.Keywords {
			if _, ok := expertise[strings.ToLower(kw)]; ok {
				matched = append(matched, kw)
			}
		}
		b.KeywordOverlap = round2(50 * float64(len(matched)) / float64(len(s.Keywords)))
	}

	if s.SubjectArea != "" && core.StringInSlice(s.SubjectArea, rev.SubjectAreas) {
		b.SubjectArea = 20
	}

	switch stats.Active {
	case 0:
		b.Workload = 15
	case 1:
		b.Workload = 10
	case 2:
		b.Workload = 5
	}

	if rate := stats.CompletionRate(); rate < 0 {
		b.Completion = 5
	} else {
		b.Completion = round2(10 * rate)
	}

	b.Quality = round2(stats.AvgRating())
	return b, matched
}

// SortCandidates puts available candidates first, then sorts by score descending, name and ID.
func SortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		ci, cj := cands[i], cands[j]
		if ci.Available != cj.Available {
			return ci.Available
		}
		if ci.Score != cj.Score {
			return ci.Score > cj.Score
		}
		if ni, nj := strings.ToLower(ci.Reviewer.Name), strings.ToLower(cj.Reviewer.Name); ni != nj {
			return ni < nj
		}
		return ci.Reviewer.ID < cj.Reviewer.ID
	})
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
