package filesystem

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailbridge/backend/internal/storage"
)

func TestSaveAndGetAttachment(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.SaveAttachment(42, 0, "report.pdf", []byte("pdf-bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("messages", "42", "0-report.pdf"), ref)

	content, err := store.GetAttachment(ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf-bytes"), content)
}

func TestGetAttachmentNotFound(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetAttachment("messages/1/0-missing.bin")
	assert.ErrorIs(t, err, storage.ErrAttachmentNotFound)
}

func TestGetAttachmentRejectsEscapingPath(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetAttachment("../../etc/passwd")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrAttachmentNotFound)
}

func TestSanitizeFilename(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.SaveAttachment(7, 0, "../..//evil:name?.txt", []byte("x"))
	require.NoError(t, err)
	assert.NotContains(t, ref, "..")

	content, err := store.GetAttachment(ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), content)
}

func TestRemoveMessage(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.SaveAttachment(9, 0, "a.txt", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, store.RemoveMessage(9))

	_, err = store.GetAttachment(ref)
	assert.ErrorIs(t, err, storage.ErrAttachmentNotFound)
}

func TestAttachmentPathMatchesSave(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.SaveAttachment(7, 2, "report.pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, ref, store.AttachmentPath(7, 2, "report.pdf"))
}
