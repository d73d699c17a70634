package storagesvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/file"
)

var ErrInvalidKey = errors.New("invalid storage key")

// DiskStore keeps blobs as plain files under a root directory.
type DiskStore struct {
	root   string
	logger core.Logger
}

var _ file.BlobStore = (*DiskStore)(nil)

func NewDiskStore(conf *core.Config, logger core.Logger) (*DiskStore, error) {
	root, err := filepath.Abs(conf.Storage.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "resolving storage dir")
	}
	if err = os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating storage dir")
	}
	return &DiskStore{root: root, logger: logger}, nil
}

// path maps `key` to a file under the root; keys escaping it are rejected.
func (s *DiskStore) path(key string) (string, error) {
	cleaned := path.Clean("/" + key)
	if key == "" || cleaned == "/" || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned[1:])), nil
}

// Put writes to a temporary file first so that readers never see partial blobs.
func (s *DiskStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	fp, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err = os.MkdirAll(filepath.Dir(fp), 0o750); err != nil {
		return 0, errors.Wrap(err, "creating blob dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(fp), ".upload-*")
	if err != nil {
		return 0, errors.Wrap(err, "creating temp blob")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, errors.Wrap(err, "writing blob")
	}
	if err = os.Rename(tmp.Name(), fp); err != nil {
		return 0, errors.Wrap(err, "moving blob")
	}
	return n, nil
}

func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	fp, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, file.ErrNotFound
		}
		return nil, errors.Wrap(err, "opening blob")
	}
	return f, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("storagesvc.Delete: removing "+key, err)
		return errors.Wrap(err, "removing blob")
	}
	return nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
