package review

// Summarize aggregates the completed reviews of a round.
func Summarize(submissionID string, round int, reviews []Review, pending int) Summary {
	sum := Summary{
		SubmissionID:    submissionID,
		Round:           round,
		Completed:       len(reviews),
		Pending:         pending,
		Recommendations: make(map[Recommendation]int),
	}
	if len(reviews) == 0 {
		return sum
	}

	var total float64
	for _, r := range reviews {
		total += recommendationWeights[r.Recommendation]
		sum.Recommendations[r.Recommendation]++
	}
	mean := total / float64(len(reviews))
	sum.MeanScore = round2(mean)
	sum.Consensus = len(sum.Recommendations) == 1

	switch {
	case mean >= 3.5:
		sum.SuggestedDecision = RecommendAccept
	case mean >= 2.5:
		sum.SuggestedDecision = RecommendMinorRevision
	case mean >= 1.75:
		sum.SuggestedDecision = RecommendMajorRevision
	default:
		sum.SuggestedDecision = RecommendReject
	}
	return sum
}
