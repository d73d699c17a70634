package file_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/file"
	testutil "github.com/trezcool/jarida/tests"
)

func TestSafeFilename(t *testing.T) {
	tests := map[string]string{
		"paper.pdf":               "paper.pdf",
		"../../etc/passwd":        "passwd",
		`C:\Users\ada\final.docx`: "final.docx",
		"my paper (v2).pdf":       "my_paper_v2_.pdf",
		"...":                     "file",
		"":                        "file",
	}
	for name, want := range tests {
		assert.Equal(t, want, file.SafeFilename(name), name)
	}
}

func TestNormalizeContentType(t *testing.T) {
	tests := []struct {
		ct, filename, want string
	}{
		{ct: "application/pdf", filename: "a.pdf", want: "application/pdf"},
		{ct: "Text/HTML; charset=utf-8", filename: "a.html", want: "text/html"},
		{ct: "text/x-tex", filename: "a.tex", want: "application/x-tex"},
		{ct: "application/octet-stream", filename: "A.DOCX", want: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{ct: "", filename: "archive.zip", want: "application/zip"},
		{ct: "", filename: "noext", want: ""},
		{ct: "image/png", filename: "a.pdf", want: "image/png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, file.NormalizeContentType(tt.ct, tt.filename), tt.ct+" "+tt.filename)
	}
}

func TestService_Store(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	svc := env.FileSvc

	content := "%PDF-1.4 the manuscript"
	v1, err := svc.Store(ctx, file.NewVersion{
		SubmissionID: "s-1",
		Kind:         file.KindManuscript,
		Filename:     "../My Paper.pdf",
		UploadedBy:   "u-1",
	}, strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, "My_Paper.pdf", v1.Filename)
	assert.Equal(t, "application/pdf", v1.ContentType)
	assert.Equal(t, int64(len(content)), v1.Size)
	sum := sha256.Sum256([]byte(content))
	assert.Equal(t, hex.EncodeToString(sum[:]), v1.Checksum)
	assert.True(t, strings.HasPrefix(v1.StorageKey, "submissions/s-1/manuscript/v1-"))

	v2, err := svc.Store(ctx, file.NewVersion{SubmissionID: "s-1", Kind: file.KindManuscript, Filename: "paper.pdf"}, strings.NewReader("v2"))
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	other, err := svc.Store(ctx, file.NewVersion{SubmissionID: "s-1", Kind: file.KindSupplementary, Filename: "data.zip"}, strings.NewReader("zip"))
	require.NoError(t, err)
	assert.Equal(t, 1, other.Version)

	rc, err := svc.Open(ctx, v1)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, content, string(body))

	got, err := svc.Get(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, v1, got)
	_, err = svc.Get(ctx, "nope")
	assert.True(t, core.IsNotFound(err))

	manuscripts, err := svc.List(ctx, "s-1", file.KindManuscript)
	require.NoError(t, err)
	assert.Len(t, manuscripts, 2)
	all, err := svc.List(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	has, err := svc.Has(ctx, "s-1", file.GalleyKinds...)
	require.NoError(t, err)
	assert.False(t, has)
	has, err = svc.Has(ctx, "s-1", file.KindSupplementary)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestService_StoreRejected(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	tests := []struct {
		name string
		nv   file.NewVersion
		body io.Reader
	}{
		{name: "invalid kind", nv: file.NewVersion{SubmissionID: "s-1", Kind: "poster", Filename: "a.pdf"}, body: strings.NewReader("x")},
		{name: "wrong content type", nv: file.NewVersion{SubmissionID: "s-1", Kind: file.KindGalleyHTML, Filename: "a.pdf"}, body: strings.NewReader("x")},
		{name: "unknown content type", nv: file.NewVersion{SubmissionID: "s-1", Kind: file.KindManuscript, Filename: "a.exe"}, body: strings.NewReader("x")},
		{
			name: "too large",
			nv:   file.NewVersion{SubmissionID: "s-1", Kind: file.KindManuscript, Filename: "a.pdf"},
			body: bytes.NewReader(make([]byte, env.Conf.Storage.MaxUploadSize+1)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.FileSvc.Store(ctx, tt.nv, tt.body)
			var verr *core.ValidationError
			assert.True(t, errors.As(err, &verr), "unexpected error: %v", err)
		})
	}
	assert.Zero(t, env.Store.Len())

	files, err := env.FileSvc.List(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, files)
}
