package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/jarida/core/file"
)

type fileRepository struct {
	db *DB
}

var _ file.Repository = (*fileRepository)(nil) // interface compliance check

func NewFileRepository(db *DB) file.Repository {
	return &fileRepository{db: db}
}

func (repo *fileRepository) CreateVersion(_ context.Context, v file.Version) (file.Version, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	v.ID = uuid.New().String()
	repo.db.files[v.ID] = v
	return v, nil
}

func (repo *fileRepository) GetVersion(_ context.Context, id string) (file.Version, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	v, ok := repo.db.files[id]
	if !ok {
		return file.Version{}, file.ErrNotFound
	}
	return v, nil
}

func (repo *fileRepository) QueryVersions(_ context.Context, filter file.QueryFilter) ([]file.Version, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var versions []file.Version
	for _, v := range repo.db.files {
		if filter.Match(v) {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		if versions[i].Kind != versions[j].Kind {
			return versions[i].Kind < versions[j].Kind
		}
		return versions[i].Version < versions[j].Version
	})
	return versions, nil
}

func (repo *fileRepository) MaxVersion(_ context.Context, submissionID string, kind file.Kind) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var max int
	for _, v := range repo.db.files {
		if v.SubmissionID == submissionID && v.Kind == kind && v.Version > max {
			max = v.Version
		}
	}
	return max, nil
}
