package production_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/file"
	"github.com/trezcool/jarida/core/production"
	"github.com/trezcool/jarida/core/submission"
	"github.com/trezcool/jarida/core/user"
	testutil "github.com/trezcool/jarida/tests"
)

func TestStage_Next(t *testing.T) {
	tests := []struct {
		stage  production.Stage
		want   production.Stage
		wantOk bool
	}{
		{stage: production.StageCopyediting, want: production.StageTypesetting, wantOk: true},
		{stage: production.StageTypesetting, want: production.StageProofing, wantOk: true},
		{stage: production.StageProofing, want: production.StageReady, wantOk: true},
		{stage: production.StageReady},
		{stage: "lol"},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			next, ok := tt.stage.Next()
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestService_workflow(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	svc := env.ProductionSvc

	editor := testutil.CreateUser(t, env.UserRepo, "Mary Editor", "meditor", "editor@journal.test", "", []string{user.RoleEditor}, true)
	staff := testutil.CreateUser(t, env.UserRepo, "Tom Setter", "tomsetter", "tom@journal.test", "", []string{user.RoleProduction}, true)
	author := testutil.CreateUser(t, env.UserRepo, "Ada Lovelace", "adalovelace", "ada@journal.test", "", []string{user.RoleAuthor}, true)
	sub := testutil.CreateSubmission(t, env.SubmissionRepo, author, submission.StatusAccepted)
	draft := testutil.CreateSubmission(t, env.SubmissionRepo, author, submission.StatusDraft)

	// start
	_, err := svc.StartProduction(ctx, sub.ID, author)
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
	_, err = svc.StartProduction(ctx, draft.ID, editor)
	assert.True(t, core.IsConflict(err), "unexpected error: %v", err)

	job, err := svc.StartProduction(ctx, sub.ID, editor)
	require.NoError(t, err)
	assert.Equal(t, production.StageCopyediting, job.Stage)
	assert.Empty(t, env.Mail.Messages())

	s, err := env.SubmissionSvc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusInProduction, s.Status)

	_, err = svc.StartProduction(ctx, sub.ID, editor)
	assert.ErrorIs(t, err, production.ErrJobExists)

	// advance
	_, err = svc.Advance(ctx, sub.ID, author, production.Advance{Stage: production.StageTypesetting})
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
	_, err = svc.Advance(ctx, sub.ID, staff, production.Advance{Stage: "printing"})
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr), "unexpected error: %v", err)
	_, err = svc.Advance(ctx, sub.ID, staff, production.Advance{Stage: production.StageProofing})
	assert.ErrorIs(t, err, production.ErrInvalidStage)
	_, err = svc.Advance(ctx, "nope", staff, production.Advance{Stage: production.StageTypesetting})
	assert.True(t, core.IsNotFound(err))

	job, err = svc.Advance(ctx, sub.ID, staff, production.Advance{Stage: " Typesetting ", Notes: "two columns"})
	require.NoError(t, err)
	assert.Equal(t, production.StageTypesetting, job.Stage)
	assert.Equal(t, "two columns", job.Notes)

	// authors are emailed once proofs are out
	job, err = svc.Advance(ctx, sub.ID, staff, production.Advance{Stage: production.StageProofing})
	require.NoError(t, err)
	require.Len(t, env.Mail.Messages(), 1)
	assert.Equal(t, "ada@journal.test", env.Mail.Messages()[0].To[0].Address)
	assert.Equal(t, "two columns", job.Notes)

	_, err = svc.Advance(ctx, sub.ID, staff, production.Advance{Stage: production.StageReady})
	assert.Equal(t, production.ErrGalleyRequired, err)

	// galleys
	galley := production.Upload{
		SubmissionID: sub.ID,
		Kind:         file.KindGalleyPDF,
		Filename:     "galley.pdf",
		ContentType:  "application/pdf",
		Body:         bytes.NewBufferString("%PDF-1.4 galley"),
	}
	_, err = svc.Upload(ctx, galley, author)
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	v, err := svc.Upload(ctx, galley, staff)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)
	files, err := svc.ListFiles(ctx, sub.ID, file.GalleyKinds...)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	job, err = svc.Advance(ctx, sub.ID, staff, production.Advance{Stage: production.StageReady})
	require.NoError(t, err)
	assert.Equal(t, production.StageReady, job.Stage)

	got, err := svc.GetJob(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestService_Assign(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	svc := env.ProductionSvc

	editor := testutil.CreateUser(t, env.UserRepo, "Mary Editor", "meditor", "editor@journal.test", "", []string{user.RoleEditor}, true)
	staff := testutil.CreateUser(t, env.UserRepo, "Tom Setter", "tomsetter", "tom@journal.test", "", []string{user.RoleProduction}, true)
	retired := testutil.CreateUser(t, env.UserRepo, "Old Setter", "oldsetter", "old@journal.test", "", []string{user.RoleProduction}, false)
	author := testutil.CreateUser(t, env.UserRepo, "Ada Lovelace", "adalovelace", "ada@journal.test", "", []string{user.RoleAuthor}, true)
	sub := testutil.CreateSubmission(t, env.SubmissionRepo, author, submission.StatusAccepted)

	_, err := svc.Assign(ctx, sub.ID, editor, production.Assign{AssigneeID: staff.ID})
	assert.True(t, core.IsNotFound(err))

	_, err = svc.StartProduction(ctx, sub.ID, editor)
	require.NoError(t, err)

	tests := []struct {
		name  string
		actor user.User
		asg   production.Assign
	}{
		{name: "not an editor", actor: staff, asg: production.Assign{AssigneeID: staff.ID}},
		{name: "no assignee", actor: editor},
		{name: "unknown assignee", actor: editor, asg: production.Assign{AssigneeID: "nope"}},
		{name: "not production staff", actor: editor, asg: production.Assign{AssigneeID: author.ID}},
		{name: "inactive", actor: editor, asg: production.Assign{AssigneeID: retired.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Assign(ctx, sub.ID, tt.actor, tt.asg)
			assert.Error(t, err)
		})
	}

	env.Mail.Reset()
	job, err := svc.Assign(ctx, sub.ID, editor, production.Assign{AssigneeID: staff.ID})
	require.NoError(t, err)
	assert.Equal(t, staff.ID, job.AssigneeID)
	require.Len(t, env.Mail.Messages(), 1)
	assert.Equal(t, "tom@journal.test", env.Mail.Messages()[0].To[0].Address)
}

func TestService_Upload(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	svc := env.ProductionSvc

	author := testutil.CreateUser(t, env.UserRepo, "Ada Lovelace", "adalovelace", "ada@journal.test", "", []string{user.RoleAuthor}, true)
	other := testutil.CreateUser(t, env.UserRepo, "Grace Hopper", "gracehopper", "grace@navy.test", "", []string{user.RoleAuthor}, true)
	draft := testutil.CreateSubmission(t, env.SubmissionRepo, author, submission.StatusDraft)
	revising := testutil.CreateSubmission(t, env.SubmissionRepo, author, submission.StatusRevisionRequested)
	reviewing := testutil.CreateSubmission(t, env.SubmissionRepo, author, submission.StatusUnderReview)

	upload := func(s submission.Submission, kind file.Kind) production.Upload {
		return production.Upload{
			SubmissionID: s.ID,
			Kind:         kind,
			Filename:     "paper.pdf",
			Body:         bytes.NewBufferString("%PDF-1.4 paper"),
		}
	}

	tests := []struct {
		name     string
		up       production.Upload
		uploader user.User
		wantErr  error
	}{
		{name: "manuscript on draft", up: upload(draft, file.KindManuscript), uploader: author},
		{name: "second manuscript version", up: upload(draft, file.KindManuscript), uploader: author},
		{name: "revision on revision requested", up: upload(revising, file.KindRevision), uploader: author},
		{name: "not the submitter", up: upload(draft, file.KindManuscript), uploader: other, wantErr: core.ErrPermissionDenied},
		{name: "revision on draft", up: upload(draft, file.KindRevision), uploader: author, wantErr: production.ErrUploadClosed},
		{name: "manuscript on revision", up: upload(revising, file.KindManuscript), uploader: author, wantErr: production.ErrUploadClosed},
		{name: "under review", up: upload(reviewing, file.KindSupplementary), uploader: author, wantErr: production.ErrUploadClosed},
		{name: "galley by author", up: upload(draft, file.KindGalleyPDF), uploader: author, wantErr: core.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.up, tt.uploader)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	_, err := svc.Upload(ctx, upload(draft, "poster"), author)
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr), "unexpected error: %v", err)

	versions, err := svc.ListFiles(ctx, draft.ID, file.KindManuscript)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	got, err := svc.GetFile(ctx, versions[1].ID)
	require.NoError(t, err)
	assert.Equal(t, versions[1], got)
	assert.Equal(t, "application/pdf", got.ContentType)
}
