package sqlxrepos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/submission"
)

const submissionColumns = `id, title, abstract, keywords, subject_area, article_type, cover_letter, authors,
	corresponding_author, submitter_id, handling_editor_id, status, round, submitted_at, decided_at, created_at, updated_at`

type submissionRow struct {
	ID                  string         `db:"id"`
	Title               string         `db:"title"`
	Abstract            string         `db:"abstract"`
	Keywords            pq.StringArray `db:"keywords"`
	SubjectArea         string         `db:"subject_area"`
	ArticleType         string         `db:"article_type"`
	CoverLetter         string         `db:"cover_letter"`
	Authors             null.JSON      `db:"authors"`
	CorrespondingAuthor string         `db:"corresponding_author"`
	SubmitterID         string         `db:"submitter_id"`
	HandlingEditorID    null.String    `db:"handling_editor_id"`
	Status              string         `db:"status"`
	Round               int            `db:"round"`
	SubmittedAt         null.Time      `db:"submitted_at"`
	DecidedAt           null.Time      `db:"decided_at"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

type statusChangeRow struct {
	ID           string      `db:"id"`
	SubmissionID string      `db:"submission_id"`
	FromStatus   string      `db:"from_status"`
	ToStatus     string      `db:"to_status"`
	ActorID      null.String `db:"actor_id"`
	Note         string      `db:"note"`
	CreatedAt    time.Time   `db:"created_at"`
}

type submissionRepository struct {
	exec sqlx.ExtContext
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(exec sqlx.ExtContext) submission.Repository {
	return &submissionRepository{exec: exec}
}

func marshalAuthors(authors []submission.Author) (null.JSON, error) {
	if authors == nil {
		authors = []submission.Author{}
	}
	b, err := json.Marshal(authors)
	if err != nil {
		return null.JSON{}, errors.Wrap(err, "marshalling authors")
	}
	return null.JSONFrom(b), nil
}

func unmarshalAuthors(j null.JSON) ([]submission.Author, error) {
	if !j.Valid {
		return nil, nil
	}
	var authors []submission.Author
	if err := json.Unmarshal(j.JSON, &authors); err != nil {
		return nil, errors.Wrap(err, "unmarshalling authors")
	}
	return authors, nil
}

func (repo submissionRepository) boil(s submission.Submission) (submissionRow, error) {
	authors, err := marshalAuthors(s.Authors)
	if err != nil {
		return submissionRow{}, err
	}
	return submissionRow{
		ID:                  s.ID,
		Title:               s.Title,
		Abstract:            s.Abstract,
		Keywords:            textArray(s.Keywords),
		SubjectArea:         s.SubjectArea,
		ArticleType:         string(s.ArticleType),
		CoverLetter:         s.CoverLetter,
		Authors:             authors,
		CorrespondingAuthor: s.CorrespondingAuthor,
		SubmitterID:         s.SubmitterID,
		HandlingEditorID:    nullID(s.HandlingEditorID),
		Status:              string(s.Status),
		Round:               s.Round,
		SubmittedAt:         nullTime(s.SubmittedAt),
		DecidedAt:           nullTime(s.DecidedAt),
		CreatedAt:           s.CreatedAt.UTC(),
		UpdatedAt:           s.UpdatedAt.UTC(),
	}, nil
}

func (repo submissionRepository) unboil(row submissionRow) (submission.Submission, error) {
	authors, err := unmarshalAuthors(row.Authors)
	if err != nil {
		return submission.Submission{}, err
	}
	return submission.Submission{
		ID:                  row.ID,
		Title:               row.Title,
		Abstract:            row.Abstract,
		Keywords:            row.Keywords,
		SubjectArea:         row.SubjectArea,
		ArticleType:         submission.ArticleType(row.ArticleType),
		CoverLetter:         row.CoverLetter,
		Authors:             authors,
		CorrespondingAuthor: row.CorrespondingAuthor,
		SubmitterID:         row.SubmitterID,
		HandlingEditorID:    row.HandlingEditorID.String,
		Status:              submission.Status(row.Status),
		Round:               row.Round,
		SubmittedAt:         row.SubmittedAt.Time.UTC(),
		DecidedAt:           row.DecidedAt.Time.UTC(),
		CreatedAt:           row.CreatedAt.UTC(),
		UpdatedAt:           row.UpdatedAt.UTC(),
	}, nil
}

func (repo submissionRepository) CreateSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	s.ID = uuid.New().String()
	row, err := repo.boil(s)
	if err != nil {
		return submission.Submission{}, err
	}
	q := `INSERT INTO submission (` + submissionColumns + `) VALUES (
		:id, :title, :abstract, :keywords, :subject_area, :article_type, :cover_letter, :authors,
		:corresponding_author, :submitter_id, :handling_editor_id, :status, :round, :submitted_at, :decided_at,
		:created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, repo.exec, q, row); err != nil {
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return s, nil
}

func (repo submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	if !validID(id) {
		return submission.Submission{}, submission.ErrNotFound
	}
	var row submissionRow
	q := `SELECT ` + submissionColumns + ` FROM submission WHERE id = ?`
	if err := getRow(ctx, repo.exec, &row, q, id); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrNotFound, "finding submission by ID")
	}
	return repo.unboil(row)
}

// authorMatch returns the jsonb containment document matching an author by `key`.
func authorMatch(key, val string) string {
	b, _ := json.Marshal([]map[string]string{{key: val}})
	return string(b)
}

func (repo submissionRepository) QuerySubmissions(
	ctx context.Context,
	filter *submission.QueryFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]submission.Submission, error) {
	var where whereClause

	if filter != nil {
		if filter.IDs != nil {
			where.and("id = ANY(?::uuid[])", validIDs(filter.IDs))
		}
		if len(filter.Statuses) > 0 {
			statuses := make(pq.StringArray, 0, len(filter.Statuses))
			for _, st := range filter.Statuses {
				statuses = append(statuses, string(st))
			}
			where.and("status = ANY(?)", statuses)
		}
		if filter.SubmitterID != "" {
			if !validID(filter.SubmitterID) {
				return nil, nil
			}
			where.and("submitter_id = ?", filter.SubmitterID)
		}
		if filter.HandlingEditorID != "" {
			if !validID(filter.HandlingEditorID) {
				return nil, nil
			}
			where.and("handling_editor_id = ?", filter.HandlingEditorID)
		}
		if filter.SubjectArea != "" {
			where.and("subject_area = ?", filter.SubjectArea)
		}
		// submissions with Title or Abstract matching the search keyword, or having it as keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where.and("(title ILIKE ? OR abstract ILIKE ? OR LOWER(?) = ANY(keywords))", val, val, filter.Search)
		}
		if !filter.CreatedFrom.IsZero() {
			where.and("created_at >= ?", filter.CreatedFrom.UTC())
		}
		// submissions submitted, co-authored or reviewed by the user
		if filter.AuthorUserID != "" || filter.AuthorEmail != "" || len(filter.AssignedIDs) > 0 {
			var conds []string
			var args []interface{}
			if validID(filter.AuthorUserID) {
				conds = append(conds, "submitter_id = ? OR authors @> ?::jsonb")
				args = append(args, filter.AuthorUserID, authorMatch("user_id", filter.AuthorUserID))
			}
			if filter.AuthorEmail != "" {
				conds = append(conds, "authors @> ?::jsonb")
				args = append(args, authorMatch("email", filter.AuthorEmail))
			}
			if ids := validIDs(filter.AssignedIDs); len(ids) > 0 {
				conds = append(conds, "id = ANY(?::uuid[])")
				args = append(args, ids)
			}
			if len(conds) == 0 {
				return nil, nil
			}
			where.and("("+strings.Join(conds, " OR ")+")", args...)
		}
	}

	limit, limitArgs := paginate(page)
	q := `SELECT ` + submissionColumns + ` FROM submission` + where.String() + orderBy(ordering, "created_at DESC") + limit

	var rows []submissionRow
	if err := selectRows(ctx, repo.exec, &rows, q, append(where.args, limitArgs...)...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, row := range rows {
		s, err := repo.unboil(row)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func (repo submissionRepository) UpdateSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	if !validID(s.ID) {
		return submission.Submission{}, submission.ErrNotFound
	}
	row, err := repo.boil(s)
	if err != nil {
		return submission.Submission{}, err
	}
	q := `UPDATE submission SET title = :title, abstract = :abstract, keywords = :keywords,
		subject_area = :subject_area, article_type = :article_type, cover_letter = :cover_letter, authors = :authors,
		corresponding_author = :corresponding_author, handling_editor_id = :handling_editor_id, status = :status,
		round = :round, submitted_at = :submitted_at, decided_at = :decided_at, updated_at = :updated_at
		WHERE id = :id`
	cnt, err := namedExecAffected(ctx, repo.exec, q, row)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "updating submission")
	}
	if cnt == 0 {
		return submission.Submission{}, submission.ErrNotFound
	}
	return s, nil
}

func (repo submissionRepository) CreateStatusChange(ctx context.Context, sc submission.StatusChange) (submission.StatusChange, error) {
	sc.ID = uuid.New().String()
	row := statusChangeRow{
		ID:           sc.ID,
		SubmissionID: sc.SubmissionID,
		FromStatus:   string(sc.From),
		ToStatus:     string(sc.To),
		ActorID:      nullID(sc.ActorID),
		Note:         sc.Note,
		CreatedAt:    sc.CreatedAt.UTC(),
	}
	q := `INSERT INTO status_change (id, submission_id, from_status, to_status, actor_id, note, created_at)
		VALUES (:id, :submission_id, :from_status, :to_status, :actor_id, :note, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, row); err != nil {
		return submission.StatusChange{}, errors.Wrap(err, "inserting status change")
	}
	return sc, nil
}

func (repo submissionRepository) QueryStatusChanges(ctx context.Context, submissionID string) ([]submission.StatusChange, error) {
	if !validID(submissionID) {
		return nil, nil
	}
	var rows []statusChangeRow
	q := `SELECT id, submission_id, from_status, to_status, actor_id, note, created_at
		FROM status_change WHERE submission_id = ? ORDER BY created_at ASC, id ASC`
	if err := selectRows(ctx, repo.exec, &rows, q, submissionID); err != nil {
		return nil, errors.Wrap(err, "querying status changes")
	}
	changes := make([]submission.StatusChange, 0, len(rows))
	for _, row := range rows {
		changes = append(changes, submission.StatusChange{
			ID:           row.ID,
			SubmissionID: row.SubmissionID,
			From:         submission.Status(row.FromStatus),
			To:           submission.Status(row.ToStatus),
			ActorID:      row.ActorID.String,
			Note:         row.Note,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return changes, nil
}
