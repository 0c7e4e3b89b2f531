package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"
)

// MarkerManager maintains the per-(chat, member) zero-byte objects the blob
// store's access rules evaluate. All operations are best-effort: a marker
// failure must never fail the chat mutation that triggered it.
type MarkerManager interface {
	EnsureMemberMarker(ctx context.Context, chatID, uid string)
	RemoveMemberMarker(ctx context.Context, chatID, uid string)
}

// Markers is the BlobStore-backed MarkerManager.
type Markers struct {
	blobs BlobStore
}

// NewMarkers builds a Markers.
func NewMarkers(blobs BlobStore) *Markers {
	return &Markers{blobs: blobs}
}

func markerKey(chatID, uid string) string {
	return fmt.Sprintf("chats/%s/members/%s", chatID, uid)
}

// EnsureMemberMarker writes the membership marker for uid. Idempotent.
func (m *Markers) EnsureMemberMarker(ctx context.Context, chatID, uid string) {
	if _, err := m.blobs.Put(ctx, markerKey(chatID, uid), "application/octet-stream", bytes.NewReader(nil)); err != nil {
		log.Printf("storage: ensure member marker failed chat=%s uid=%s: %v", chatID, uid, err)
	}
}

// RemoveMemberMarker deletes the membership marker for uid.
func (m *Markers) RemoveMemberMarker(ctx context.Context, chatID, uid string) {
	if err := m.blobs.Delete(ctx, markerKey(chatID, uid)); err != nil {
		log.Printf("storage: remove member marker failed chat=%s uid=%s: %v", chatID, uid, err)
	}
}

// MediaKey returns the object key for an uploaded media blob. The filename
// embeds the upload time and sender so keys never collide within a chat.
func MediaKey(chatID, kind, uid, ext string) string {
	return fmt.Sprintf("chats/%s/%s/%d_%s.%s", chatID, kind, time.Now().UnixMilli(), uid, ext)
}

// MediaExt maps a message kind to the extension used for its uploads.
func MediaExt(kind string) string {
	switch kind {
	case "image":
		return "jpg"
	case "video":
		return "mp4"
	case "audio":
		return "m4a"
	default:
		return "bin"
	}
}

// UploadMedia stores a media blob for a chat and returns its download
// reference.
func UploadMedia(ctx context.Context, blobs BlobStore, chatID, kind, uid, contentType string, body io.Reader) (string, error) {
	return blobs.Put(ctx, MediaKey(chatID, kind, uid, MediaExt(kind)), contentType, body)
}
