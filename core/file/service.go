package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("file not found")
	ErrTooLarge = errors.New("file is too large")

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

type (
	// BlobStore stores file contents by key.
	BlobStore interface {
		Put(ctx context.Context, key string, r io.Reader) (int64, error)
		Open(ctx context.Context, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, key string) error
	}

	Repository interface {
		CreateVersion(ctx context.Context, v Version) (Version, error)
		GetVersion(ctx context.Context, id string) (Version, error)
		// QueryVersions returns versions ordered by kind then version.
		QueryVersions(ctx context.Context, filter QueryFilter) ([]Version, error)
		MaxVersion(ctx context.Context, submissionID string, kind Kind) (int, error)
	}

	Service interface {
		// Store streams `r` to the blob store, computing its checksum, and records a new version.
		Store(ctx context.Context, nv NewVersion, r io.Reader) (Version, error)
		List(ctx context.Context, submissionID string, kinds ...Kind) ([]Version, error)
		Get(ctx context.Context, id string) (Version, error)
		Open(ctx context.Context, v Version) (io.ReadCloser, error)
		Has(ctx context.Context, submissionID string, kinds ...Kind) (bool, error)
	}

	service struct {
		repo    Repository
		store   BlobStore
		maxSize int64
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, store BlobStore, conf *core.Config) Service {
	return &service{repo: repo, store: store, maxSize: conf.Storage.MaxUploadSize}
}

// SafeFilename strips directories and anything but letters, digits, dots, dashes and underscores.
func SafeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "._")
	if name == "" {
		return "file"
	}
	return name
}

func (svc *service) Store(ctx context.Context, nv NewVersion, r io.Reader) (Version, error) {
	filename := SafeFilename(nv.Filename)
	ct := NormalizeContentType(nv.ContentType, filename)
	if !nv.Kind.Valid() {
		return Version{}, core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "invalid file kind"})
	}
	if !core.StringInSlice(ct, nv.Kind.AllowedContentTypes()) {
		return Version{}, core.NewValidationError(nil, core.FieldError{
			Field: "file",
			Error: fmt.Sprintf("content type %q is not allowed for %s files", ct, nv.Kind),
		})
	}

	maxVer, err := svc.repo.MaxVersion(ctx, nv.SubmissionID, nv.Kind)
	if err != nil {
		return Version{}, errors.Wrap(err, "getting max version")
	}
	ver := maxVer + 1
	key := path.Join("submissions", nv.SubmissionID, string(nv.Kind), fmt.Sprintf("v%d-%s-%s", ver, uuid.New().String()[:8], filename))

	hash := sha256.New()
	body := io.TeeReader(r, hash)
	if svc.maxSize > 0 {
		body = io.LimitReader(body, svc.maxSize+1)
	}
	size, err := svc.store.Put(ctx, key, body)
	if err != nil {
		return Version{}, errors.Wrap(err, "storing file")
	}
	if svc.maxSize > 0 && size > svc.maxSize {
		_ = svc.store.Delete(ctx, key)
		return Version{}, core.NewValidationError(ErrTooLarge, core.FieldError{
			Field: "file",
			Error: fmt.Sprintf("file must not exceed %d bytes", svc.maxSize),
		})
	}

	v, err := svc.repo.CreateVersion(ctx, Version{
		SubmissionID: nv.SubmissionID,
		Kind:         nv.Kind,
		Version:      ver,
		Filename:     filename,
		ContentType:  ct,
		Size:         size,
		Checksum:     hex.EncodeToString(hash.Sum(nil)),
		StorageKey:   key,
		UploadedBy:   nv.UploadedBy,
		CreatedAt:    core.Now(),
	})
	if err != nil {
		_ = svc.store.Delete(ctx, key)
		return Version{}, errors.Wrap(err, "creating file version")
	}
	return v, nil
}

func (svc *service) List(ctx context.Context, submissionID string, kinds ...Kind) ([]Version, error) {
	return svc.repo.QueryVersions(ctx, QueryFilter{SubmissionID: submissionID, Kinds: kinds})
}

func (svc *service) Get(ctx context.Context, id string) (Version, error) {
	return svc.repo.GetVersion(ctx, id)
}

func (svc *service) Open(ctx context.Context, v Version) (io.ReadCloser, error) {
	return svc.store.Open(ctx, v.StorageKey)
}

func (svc *service) Has(ctx context.Context, submissionID string, kinds ...Kind) (bool, error) {
	versions, err := svc.List(ctx, submissionID, kinds...)
	if err != nil {
		return false, err
	}
	return len(versions) > 0, nil
}
