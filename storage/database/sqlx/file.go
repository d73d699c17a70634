package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/jarida/core/file"
)

const fileColumns = `id, submission_id, kind, version, filename, content_type, size, checksum, storage_key,
	uploaded_by, created_at`

type fileRow struct {
	ID           string      `db:"id"`
	SubmissionID string      `db:"submission_id"`
	Kind         string      `db:"kind"`
	Version      int         `db:"version"`
	Filename     string      `db:"filename"`
	ContentType  string      `db:"content_type"`
	Size         int64       `db:"size"`
	Checksum     string      `db:"checksum"`
	StorageKey   string      `db:"storage_key"`
	UploadedBy   null.String `db:"uploaded_by"`
	CreatedAt    time.Time   `db:"created_at"`
}

type fileRepository struct {
	exec sqlx.ExtContext
}

var _ file.Repository = (*fileRepository)(nil) // interface compliance check

func NewFileRepository(exec sqlx.ExtContext) file.Repository {
	return &fileRepository{exec: exec}
}

func (repo fileRepository) unboil(row fileRow) file.Version {
	return file.Version{
		ID:           row.ID,
		SubmissionID: row.SubmissionID,
		Kind:         file.Kind(row.Kind),
		Version:      row.Version,
		Filename:     row.Filename,
		ContentType:  row.ContentType,
		Size:         row.Size,
		Checksum:     row.Checksum,
		StorageKey:   row.StorageKey,
		UploadedBy:   row.UploadedBy.String,
		CreatedAt:    row.CreatedAt.UTC(),
	}
}

func (repo fileRepository) CreateVersion(ctx context.Context, v file.Version) (file.Version, error) {
	v.ID = uuid.New().String()
	row := fileRow{
		ID:           v.ID,
		SubmissionID: v.SubmissionID,
		Kind:         string(v.Kind),
		Version:      v.Version,
		Filename:     v.Filename,
		ContentType:  v.ContentType,
		Size:         v.Size,
		Checksum:     v.Checksum,
		StorageKey:   v.StorageKey,
		UploadedBy:   nullID(v.UploadedBy),
		CreatedAt:    v.CreatedAt.UTC(),
	}
	q := `INSERT INTO file_version (` + fileColumns + `) VALUES (
		:id, :submission_id, :kind, :version, :filename, :content_type, :size, :checksum, :storage_key,
		:uploaded_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, row); err != nil {
		return file.Version{}, errors.Wrap(err, "inserting file version")
	}
	return v, nil
}

func (repo fileRepository) GetVersion(ctx context.Context, id string) (file.Version, error) {
	if !validID(id) {
		return file.Version{}, file.ErrNotFound
	}
	var row fileRow
	q := `SELECT ` + fileColumns + ` FROM file_version WHERE id = ?`
	if err := getRow(ctx, repo.exec, &row, q, id); err != nil {
		return file.Version{}, trapNoRowsErr(err, file.ErrNotFound, "finding file version by ID")
	}
	return repo.unboil(row), nil
}

func (repo fileRepository) QueryVersions(ctx context.Context, filter file.QueryFilter) ([]file.Version, error) {
	var where whereClause
	if filter.SubmissionID != "" {
		if !validID(filter.SubmissionID) {
			return nil, nil
		}
		where.and("submission_id = ?", filter.SubmissionID)
	}
	if len(filter.Kinds) > 0 {
		kinds := make(pq.StringArray, 0, len(filter.Kinds))
		for _, k := range filter.Kinds {
			kinds = append(kinds, string(k))
		}
		where.and("kind = ANY(?)", kinds)
	}

	var rows []fileRow
	q := `SELECT ` + fileColumns + ` FROM file_version` + where.String() + ` ORDER BY kind ASC, version ASC`
	if err := selectRows(ctx, repo.exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying file versions")
	}
	versions := make([]file.Version, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, repo.unboil(row))
	}
	return versions, nil
}

func (repo fileRepository) MaxVersion(ctx context.Context, submissionID string, kind file.Kind) (int, error) {
	if !validID(submissionID) {
		return 0, nil
	}
	var max int
	q := `SELECT COALESCE(MAX(version), 0) FROM file_version WHERE submission_id = ? AND kind = ?`
	if err := getRow(ctx, repo.exec, &max, q, submissionID, string(kind)); err != nil {
		return 0, errors.Wrap(err, "finding latest file version")
	}
	return max, nil
}
