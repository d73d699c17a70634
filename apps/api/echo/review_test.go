package echoapi

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core/decision"
	"github.com/trezcool/jarida/core/file"
	"github.com/trezcool/jarida/core/review"
	"github.com/trezcool/jarida/core/submission"
	testutil "github.com/trezcool/jarida/tests"
)

func boolPtr(b bool) *bool { return &b }

func newReview(rec review.Recommendation) review.NewReview {
	return review.NewReview{
		Recommendation:   rec,
		Scores:           review.Scores{Originality: 4, Methodology: 3, Clarity: 4, Significance: 5},
		CommentsToAuthor: strings.Repeat("The sampling design is sound but the controls need detail. ", 2),
		CommentsToEditor: "Confidential: borderline novelty.",
	}
}

func TestReviewApi_peerReview(t *testing.T) {
	env.Reset()
	_, editor, author, _ := createUsers(t)
	rita := testutil.CreateReviewer(t, env.UserRepo, "Rita Reviewer", "rita@uni.test", "Uni of Rita", "microbiome", "soil")
	sam := testutil.CreateReviewer(t, env.UserRepo, "Sam Second", "sam@lab.test", "Sam Lab", "drought")
	s := testutil.CreateSubmission(t, env.SubmissionRepo, author, submission.StatusSubmitted)
	testutil.StoreFile(t, env.FileSvc, s.ID, file.KindManuscript, author)

	editorToken, ritaToken, samToken, authorToken := getToken(t, editor), getToken(t, rita), getToken(t, sam), getToken(t, author)
	subPath := "/v1/submissions/" + s.ID

	t.Run("candidates", func(t *testing.T) {
		rec := do(http.MethodGet, subPath+"/reviewer-candidates", editorToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		candidates := field(rec, "@this").Array()
		require.Len(t, candidates, 2)
		// rita matches more keywords
		assert.Equal(t, rita.ID, candidates[0].Get("reviewer.id").String())
		assert.GreaterOrEqual(t, candidates[0].Get("score").Float(), candidates[1].Get("score").Float())

		rec = do(http.MethodGet, subPath+"/reviewer-candidates", authorToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	runHTTPTests(t, []httpTest{
		{
			name:     "authors cannot review their work",
			method:   http.MethodPost,
			path:     subPath + "/assignments",
			token:    editorToken,
			body:     marchallObj(t, review.Invitation{ReviewerID: author.ID}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"reviewer_id":"user is not an active reviewer"}`),
		},
		{
			name:     "invalid due days",
			method:   http.MethodPost,
			path:     subPath + "/assignments",
			token:    editorToken,
			body:     marchallObj(t, review.Invitation{ReviewerID: rita.ID, DueDays: 365}),
			wantCode: http.StatusBadRequest,
		},
	})

	var ritaAssignment, samAssignment string
	t.Run("invite", func(t *testing.T) {
		rec := do(http.MethodPost, subPath+"/assignments", editorToken, marchallObj(t, review.Invitation{ReviewerID: rita.ID}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, string(review.AssignmentInvited), field(rec, "status").String())
		assert.EqualValues(t, 1, field(rec, "round").Int())
		ritaAssignment = field(rec, "id").String()

		// the submission is now under review
		rec = do(http.MethodGet, subPath, editorToken)
		assert.Equal(t, string(submission.StatusUnderReview), field(rec, "status").String())

		rec = do(http.MethodPost, subPath+"/assignments", editorToken, marchallObj(t, review.Invitation{ReviewerID: rita.ID}))
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = do(http.MethodPost, subPath+"/assignments", editorToken, marchallObj(t, review.Invitation{ReviewerID: sam.ID, DueDays: 7}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		samAssignment = field(rec, "id").String()
	})

	t.Run("my assignments", func(t *testing.T) {
		rec := do(http.MethodGet, "/v1/assignments?status=invited", ritaToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, field(rec, "@this").Array(), 1)
		assert.Equal(t, ritaAssignment, field(rec, "0.id").String())
	})

	t.Run("respond", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/assignments/"+ritaAssignment+"/respond", ritaToken, []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(http.MethodPost, "/v1/assignments/"+ritaAssignment+"/respond", samToken, marchallObj(t, RespondRequest{Accept: boolPtr(true)}))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = do(http.MethodPost, "/v1/assignments/"+ritaAssignment+"/respond", ritaToken, marchallObj(t, RespondRequest{Accept: boolPtr(true)}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, string(review.AssignmentAccepted), field(rec, "status").String())

		rec = do(http.MethodPost, "/v1/assignments/"+ritaAssignment+"/respond", ritaToken, marchallObj(t, RespondRequest{Accept: boolPtr(false)}))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("review before accepting", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/assignments/"+samAssignment+"/review", samToken, marchallObj(t, newReview(review.RecommendReject)))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	var reviewID string
	t.Run("submit review", func(t *testing.T) {
		short := newReview(review.RecommendMinorRevision)
		short.CommentsToAuthor = "ok"
		rec := do(http.MethodPost, "/v1/assignments/"+ritaAssignment+"/review", ritaToken, marchallObj(t, short))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.True(t, field(rec, "comments_to_author").Exists(), rec.Body.String())

		rec = do(http.MethodPost, "/v1/assignments/"+ritaAssignment+"/review", ritaToken, marchallObj(t, newReview(review.RecommendMinorRevision)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		reviewID = field(rec, "id").String()
	})

	t.Run("cancel", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/assignments/"+samAssignment+"/cancel", samToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = do(http.MethodPost, "/v1/assignments/"+samAssignment+"/cancel", editorToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, string(review.AssignmentCancelled), field(rec, "status").String())

		// cancelled reviewers lose access
		rec = do(http.MethodGet, subPath, samToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("reviews before decision", func(t *testing.T) {
		rec := do(http.MethodGet, subPath+"/reviews", authorToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())

		rec = do(http.MethodGet, subPath+"/reviews", ritaToken)
		assert.Len(t, field(rec, "@this").Array(), 1)

		rec = do(http.MethodGet, subPath+"/reviews", editorToken)
		assert.Equal(t, "Confidential: borderline novelty.", field(rec, "0.comments_to_editor").String())
	})

	t.Run("summary", func(t *testing.T) {
		rec := do(http.MethodGet, subPath+"/review-summary", editorToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, field(rec, "completed").Int())
		assert.EqualValues(t, 0, field(rec, "pending").Int())
		assert.EqualValues(t, 1, field(rec, "recommendations.minor_revision").Int())
	})

	t.Run("rate", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/reviews/"+reviewID+"/rating", editorToken, marchallObj(t, review.Rating{Rating: 9}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(http.MethodPost, "/v1/reviews/"+reviewID+"/rating", editorToken, marchallObj(t, review.Rating{Rating: 4}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.EqualValues(t, 4, field(rec, "rating").Int())
	})

	t.Run("decide", func(t *testing.T) {
		rec := do(http.MethodPost, subPath+"/decisions", editorToken, marchallObj(t, decision.NewDecision{Kind: decision.KindDeskReject}))
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = do(http.MethodPost, subPath+"/decisions", authorToken, marchallObj(t, decision.NewDecision{Kind: decision.KindAccept}))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = do(http.MethodPost, subPath+"/decisions", editorToken, marchallObj(t, decision.NewDecision{
			Kind:     decision.KindMinorRevision,
			Comments: "Please address the reviewer comments.",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, string(decision.KindMinorRevision), field(rec, "kind").String())

		rec = do(http.MethodGet, subPath+"/decisions", authorToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, field(rec, "@this").Array(), 1)

		rec = do(http.MethodGet, subPath, authorToken)
		assert.Equal(t, string(submission.StatusRevisionRequested), field(rec, "status").String())
	})

	t.Run("reviews after decision", func(t *testing.T) {
		rec := do(http.MethodGet, subPath+"/reviews", authorToken)
		require.Equal(t, http.StatusOK, rec.Code)
		reviews := field(rec, "@this").Array()
		require.Len(t, reviews, 1)
		assert.False(t, reviews[0].Get("comments_to_editor").Exists())
		assert.NotEmpty(t, reviews[0].Get("comments_to_author").String())
	})
}
