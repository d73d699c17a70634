package submission

import (
	"strings"
	"unicode/utf8"

	"github.com/trezcool/jarida/core/file"
)

const (
	LabelReady          = "ready"
	LabelNeedsAttention = "needs_attention"
	LabelIncomplete     = "incomplete"
)

type Criterion struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Max    int    `json:"max"`
	Hint   string `json:"hint,omitempty"`
}

// Score is a display-only readiness indicator of a submission.
type Score struct {
	Total    int         `json:"total"`
	Label    string      `json:"label"`
	Criteria []Criterion `json:"criteria"`
}

// QualityScore rates how ready `s` is for review, out of 100.
func QualityScore(s Submission, files []file.Version) Score {
	var score Score
	add := func(name string, points, max int, hint string) {
		c := Criterion{Name: name, Points: points, Max: max}
		if points < max {
			c.Hint = hint
		}
		score.Criteria = append(score.Criteria, c)
		score.Total += points
	}

	titleLen := utf8.RuneCountInString(strings.TrimSpace(s.Title))
	add("title", pick(titleLen >= 10 && titleLen <= 300, 15), 15, "title should be 10 to 300 characters long")

	words := len(strings.Fields(s.Abstract))
	var abstractPts int
	switch {
	case words >= 100 && words <= 350:
		abstractPts = 25
	case (words >= 50 && words < 100) || (words > 350 && words <= 500):
		abstractPts = 10
	}
	add("abstract", abstractPts, 25, "abstract should be 100 to 350 words long")

	kwCount := len(s.Keywords)
	var kwPts int
	switch {
	case kwCount >= 3 && kwCount <= 8:
		kwPts = 15
	case kwCount >= 1:
		kwPts = 5
	}
	add("keywords", kwPts, 15, "provide 3 to 8 keywords")

	var hasManuscript bool
	for _, f := range files {
		if f.Kind == file.KindManuscript {
			hasManuscript = true
			break
		}
	}
	add("manuscript", pick(hasManuscript, 20), 20, "upload the manuscript")

	add("cover_letter", pick(strings.TrimSpace(s.CoverLetter) != "", 5), 5, "add a cover letter")

	allAffiliated := len(s.Authors) > 0
	for _, a := range s.Authors {
		if strings.TrimSpace(a.Affiliation) == "" {
			allAffiliated = false
			break
		}
	}
	add("affiliations", pick(allAffiliated, 10), 10, "every author should have an affiliation")

	corr, ok := s.Corresponding()
	add("orcid", pick(ok && corr.ORCID != "", 10), 10, "the corresponding author should have an ORCID iD")

	switch {
	case score.Total >= 80:
		score.Label = LabelReady
	case score.Total >= 50:
		score.Label = LabelNeedsAttention
	default:
		score.Label = LabelIncomplete
	}
	return score
}

func pick(ok bool, points int) int {
	if ok {
		return points
	}
	return 0
}
