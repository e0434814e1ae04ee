package raw_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	jsoncodec "github.com/loqor/objectstore/codec/json"
	"github.com/loqor/objectstore/idgen"
	"github.com/loqor/objectstore/kvstore/fsstore"
	"github.com/loqor/objectstore/object"
	"github.com/loqor/objectstore/raw"
)

func newRawStorage(t *testing.T) *raw.Storage {
	t.Helper()
	backend, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	s, err := raw.New(backend, jsoncodec.New(), idgen.New(0))
	require.NoError(t, err)
	return s
}

func TestSaveGetBytesRoundTrip(t *testing.T) {
	storage := newRawStorage(t)
	ctx := t.Context()

	meta, err := storage.Save(ctx, "Attachment", "text/plain", []byte("hello blob"))
	require.NoError(t, err)
	require.NotEmpty(t, meta.OID)
	require.Equal(t, int64(len("hello blob")), meta.Size)

	got, err := storage.Get(ctx, "Attachment", meta.OID)
	require.NoError(t, err)
	require.Equal(t, "text/plain", got.ContentType)

	data, err := storage.Bytes(ctx, "Attachment", meta.OID)
	require.NoError(t, err)
	require.Equal(t, []byte("hello blob"), data)
}

func TestRemoveDeletesMetaAndBlob(t *testing.T) {
	storage := newRawStorage(t)
	ctx := t.Context()

	meta, err := storage.Save(ctx, "Attachment", "application/octet-stream", []byte("bye"))
	require.NoError(t, err)

	require.NoError(t, storage.Remove(ctx, "Attachment", meta.OID))
	_, err = storage.Get(ctx, "Attachment", meta.OID)
	require.Error(t, err)
	_, err = storage.Bytes(ctx, "Attachment", meta.OID)
	require.Error(t, err)
}

// message is a minimal stored type carrying a list of raw attachment oids,
// used to exercise S7: a raw blob linked from an object's property survives
// both the object's cache eviction and a round trip through its own bytes.
type message struct {
	object.Base
}

func newMessage() object.StoredObject { return &message{} }

var messageSchema = &object.Schema{
	Properties: []string{"body", "attachments"},
}

func (m *message) Body() string             { s, _ := m.Property("body").(string); return s }
func (m *message) SetBody(v string)          { _ = m.SetProperty("body", v) }
func (m *message) SetAttachments(v []string) { _ = m.SetProperty("attachments", v) }

// Attachments returns the stored oid list, accepting either the typed
// []string a freshly created instance holds before its first export, or
// the []any a JSON round trip produces on restore.
func (m *message) Attachments() []string {
	switch v := m.Property("attachments").(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func TestAttachmentSurvivesMessageEviction(t *testing.T) {
	ctx := t.Context()
	rawBackend, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	rawStorage, err := raw.New(rawBackend, jsoncodec.New(), idgen.New(0))
	require.NoError(t, err)

	meta, err := rawStorage.Save(ctx, "Attachment", "image/png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)

	objectBackend, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	registry := object.NewRegistry()
	registry.Register("message", newMessage, messageSchema)
	storage := object.NewStorage(objectBackend, jsoncodec.New(), idgen.New(0), registry, nil)

	msg, err := storage.Create(ctx, "message", func(o object.StoredObject) error {
		m := o.(*message)
		m.SetBody("see attached")
		m.SetAttachments([]string{meta.OID})
		return nil
	})
	require.NoError(t, err)
	oid := msg.Base().OID()

	msg = nil //nolint:ineffassign
	runtime.GC()
	runtime.GC()

	reloaded, err := storage.Get(ctx, "message", oid)
	require.NoError(t, err)
	attachments := reloaded.(*message).Attachments()
	require.Len(t, attachments, 1)

	data, err := rawStorage.Bytes(ctx, "Attachment", attachments[0])
	require.NoError(t, err)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
}
