package klaf

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klaf-go/klaf/internal/document"
	"github.com/klaf-go/klaf/internal/kerr"
	"github.com/klaf-go/klaf/internal/logging"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "store.klaf")
}

func TestCreateOpenRoundTrip(t *testing.T) {
	path := tempPath(t)

	s, err := Create(path)
	require.NoError(t, err)

	id, err := s.Put([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	rec, err := reopened.Pick(id)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), rec.Payload)
}

func TestCreateRefusesExistingFileWithoutOverwrite(t *testing.T) {
	path := tempPath(t)
	s, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Create(path)
	require.ErrorIs(t, err, kerr.ErrAlreadyExists)
}

func TestCreateOverwriteReplacesFile(t *testing.T) {
	path := tempPath(t)
	s, err := Create(path)
	require.NoError(t, err)
	_, err = s.Put([]byte("original"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	fresh, err := Create(path, WithOverwrite(true))
	require.NoError(t, err)
	defer fresh.Close()
	require.EqualValues(t, 0, fresh.ps.LogicalCount())
}

func TestOpenMissingFileFails(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.klaf"))
	require.ErrorIs(t, err, kerr.ErrNoExists)
}

func TestUpdateAndDeleteThroughStore(t *testing.T) {
	s, err := Create(tempPath(t))
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Put([]byte("v1"))
	require.NoError(t, err)

	_, err = s.Update(id, []byte("v2"))
	require.NoError(t, err)

	rec, err := s.Pick(id)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), rec.Payload)

	require.NoError(t, s.Delete(id))
	ok, err := s.Exists(id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHooksFireAroundWriteOps(t *testing.T) {
	var before, after []string
	s, err := Create(tempPath(t), WithHooks(Hooks{
		Before: func(op string) { before = append(before, op) },
		After:  func(op string) { after = append(after, op) },
	}))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Put([]byte("x"))
	require.NoError(t, err)

	require.Equal(t, []string{"put"}, before)
	require.Equal(t, []string{"put"}, after)
}

func TestOperationsFailAfterClose(t *testing.T) {
	s, err := Create(tempPath(t))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Put([]byte("too late"))
	require.ErrorIs(t, err, kerr.ErrClosing)
}

func TestWithLevelInstallsALogger(t *testing.T) {
	s, err := Create(tempPath(t), WithLevel(logging.LevelDebug))
	require.NoError(t, err)
	defer s.Close()
	require.NotNil(t, s.cfg.logger)

	_, err = s.Put([]byte("x"))
	require.NoError(t, err)
}

func TestDocumentsRequiresDocumentLayer(t *testing.T) {
	s, err := Create(tempPath(t))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Documents()
	require.ErrorIs(t, err, kerr.ErrNoDocumentLayer)
}

var userTable = document.Table{
	"email": document.FieldSchema{},
}

func TestCreateDocumentAndRoundTripThroughHandle(t *testing.T) {
	s, err := CreateDocument(tempPath(t), userTable)
	require.NoError(t, err)
	defer s.Close()

	docs, err := s.Documents()
	require.NoError(t, err)

	id, err := docs.Put(map[string]any{"email": "a@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	found, err := docs.Pick(document.Query{"email": "a@example.com"}, document.PickOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestOpenDocumentReloadsAcrossClose(t *testing.T) {
	path := tempPath(t)
	s, err := CreateDocument(path, userTable)
	require.NoError(t, err)

	docs, err := s.Documents()
	require.NoError(t, err)
	_, err = docs.Put(map[string]any{"email": "b@example.com"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := OpenDocument(path, userTable)
	require.NoError(t, err)
	defer reopened.Close()

	reopenedDocs, err := reopened.Documents()
	require.NoError(t, err)
	found, err := reopenedDocs.Count(document.Query{})
	require.NoError(t, err)
	require.Equal(t, 1, found)
}
