package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlobStore struct {
	puts    []string
	deletes []string
	err     error
}

func (f *fakeBlobStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.puts = append(f.puts, key)
	return "https://blobs.test/" + key, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	f.deletes = append(f.deletes, key)
	return nil
}

func TestMemberMarkerKeyLayout(t *testing.T) {
	blobs := &fakeBlobStore{}
	markers := NewMarkers(blobs)

	markers.EnsureMemberMarker(context.Background(), "alice_bob", "alice")
	markers.RemoveMemberMarker(context.Background(), "alice_bob", "alice")

	require.Len(t, blobs.puts, 1)
	assert.Equal(t, "chats/alice_bob/members/alice", blobs.puts[0])
	require.Len(t, blobs.deletes, 1)
	assert.Equal(t, "chats/alice_bob/members/alice", blobs.deletes[0])
}

func TestMarkerFailuresDoNotPanic(t *testing.T) {
	blobs := &fakeBlobStore{err: assert.AnError}
	markers := NewMarkers(blobs)

	markers.EnsureMemberMarker(context.Background(), "alice_bob", "alice")
	markers.RemoveMemberMarker(context.Background(), "alice_bob", "alice")
}

func TestMediaKeyLayout(t *testing.T) {
	key := MediaKey("alice_bob", "image", "alice", MediaExt("image"))

	assert.True(t, strings.HasPrefix(key, "chats/alice_bob/image/"))
	assert.True(t, strings.HasSuffix(key, "_alice.jpg"))
}

func TestMediaExtDefaultsToBin(t *testing.T) {
	assert.Equal(t, "jpg", MediaExt("image"))
	assert.Equal(t, "mp4", MediaExt("video"))
	assert.Equal(t, "m4a", MediaExt("audio"))
	assert.Equal(t, "bin", MediaExt("file"))
}

func TestUploadMediaReturnsReference(t *testing.T) {
	blobs := &fakeBlobStore{}

	ref, err := UploadMedia(context.Background(), blobs, "alice_bob", "image", "alice", "image/jpeg", strings.NewReader("data"))

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "https://blobs.test/chats/alice_bob/image/"))
}
