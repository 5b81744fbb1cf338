package storage_test

import (
	"brokerdesk/backend/internal/storage"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannels(t *testing.T) {
	tests := []struct {
		channel  string
		wantKind string
		wantID   string
	}{
		{storage.RoomChannel("c-42"), "room", "c-42"},
		{storage.UserChannel("payer_1"), "user", "payer_1"},
		{storage.PresenceChannel, "presence", ""},
		{"chat:other", "", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			kind, id := storage.ParseChannel(tt.channel)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestFileStore_Save(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFileStore(dir, "/uploads/")
	require.NoError(t, err)

	att, err := fs.Save("../../etc/bank statement.pdf", strings.NewReader("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "bank_statement.pdf", att.Name)
	assert.Equal(t, int64(8), att.Size)
	assert.Equal(t, "application/pdf", att.MimeType)
	assert.True(t, strings.HasPrefix(att.URL, "/uploads/"))
	assert.True(t, strings.HasSuffix(att.URL, "_bank_statement.pdf"))

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(att.URL, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestFileStore_DefaultMimeType(t *testing.T) {
	fs, err := storage.NewFileStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	att, err := fs.Save("", strings.NewReader("x"), "")
	require.NoError(t, err)
	assert.Equal(t, "file", att.Name)
	assert.Equal(t, "application/octet-stream", att.MimeType)
}

func TestFileStore_Remove(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFileStore(dir, "/uploads/")
	require.NoError(t, err)

	att, err := fs.Save("rates.csv", strings.NewReader("a,b"), "text/csv")
	require.NoError(t, err)

	require.NoError(t, fs.Remove(att))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Removing twice is not an error.
	assert.NoError(t, fs.Remove(att))
}

func TestService_MalformedIDsAreNotFound(t *testing.T) {
	// No database: a malformed id must be rejected before any query runs.
	s := storage.NewStorageService(nil, nil)
	ctx := context.Background()

	_, err := s.GetConversation(ctx, "room-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteConversation(ctx, "1 OR 1=1"), storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteNotification(ctx, "payer_1", ""), storage.ErrNotFound)

	msgs, err := s.GetMessages(ctx, "room-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
