// Package raw implements the raw blob storage extension: large, opaque
// byte payloads (attachments, uploaded files) that sit alongside the
// object-persistence core rather than inside it. Metadata is stored through
// the same Backend.Add/Update path object.Storage uses; bytes go through a
// backend's optional RawBackend capability.
package raw

import (
	"context"
	"fmt"
	"time"

	"github.com/loqor/objectstore/codec"
	"github.com/loqor/objectstore/idgen"
	"github.com/loqor/objectstore/kvstore"
)

// Meta is a raw blob's persisted metadata, stored as an ordinary primitive
// at the same key the blob bytes live under (different extension).
type Meta struct {
	OID         string `json:"oid"`
	Type        string `json:"type"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Updates     string `json:"updates"`
}

func (m Meta) toPrimitive() codec.Primitive {
	return codec.Primitive{
		"oid":         m.OID,
		"type":        m.Type,
		"contentType": m.ContentType,
		"size":        float64(m.Size),
		"updates":     m.Updates,
	}
}

func metaFromPrimitive(p codec.Primitive) Meta {
	m := Meta{}
	m.OID, _ = p["oid"].(string)
	m.Type, _ = p["type"].(string)
	m.ContentType, _ = p["contentType"].(string)
	if size, ok := p["size"].(float64); ok {
		m.Size = int64(size)
	}
	m.Updates, _ = p["updates"].(string)
	return m
}

// blobExt is the file extension raw bytes are stored under, distinguishing
// them from the .json metadata a fsstore.Store writes for ordinary keys.
const blobExt = ".blob"

// Storage persists raw blobs: metadata through backend's ordinary
// Add/Update/Get, bytes through its RawBackend capability.
type Storage struct {
	backend kvstore.Backend
	raw     kvstore.RawBackend
	codec   codec.Codec
	ids     *idgen.Generator
}

// New returns a Storage over backend, which must additionally implement
// kvstore.RawBackend (fsstore.Store does; a backend that doesn't advertise
// HasRaw is rejected).
func New(backend kvstore.Backend, c codec.Codec, ids *idgen.Generator) (*Storage, error) {
	if !backend.Capabilities().Has(kvstore.HasRaw) {
		return nil, fmt.Errorf("raw: backend does not advertise HasRaw: %w", kvstore.ErrUnsupported)
	}
	rb, ok := backend.(kvstore.RawBackend)
	if !ok {
		return nil, fmt.Errorf("raw: backend does not implement RawBackend: %w", kvstore.ErrUnsupported)
	}
	return &Storage{backend: backend, raw: rb, codec: c, ids: ids}, nil
}

func metaKey(class, oid string) string { return class + "." + oid }

// Save mints a new oid, writes data as the blob body, and records its
// metadata, returning the assigned Meta.
func (s *Storage) Save(ctx context.Context, class, contentType string, data []byte) (Meta, error) {
	oid := s.ids.New()
	key := metaKey(class, oid)

	if err := s.raw.SaveRawData(ctx, key, blobExt, data); err != nil {
		return Meta{}, fmt.Errorf("raw: save blob %s: %w", key, err)
	}

	now := time.Now().UTC()
	meta := Meta{
		OID:         oid,
		Type:        class,
		ContentType: contentType,
		Size:        int64(len(data)),
		Updates:     fmt.Sprintf("%s%06d", now.Format("20060102150405"), now.Nanosecond()/1000),
	}
	encoded, err := s.codec.Marshal(meta.toPrimitive())
	if err != nil {
		return Meta{}, fmt.Errorf("raw: encode meta %s: %w", key, err)
	}
	if err := s.backend.Add(ctx, key, encoded); err != nil {
		return Meta{}, fmt.Errorf("raw: save meta %s: %w", key, err)
	}
	return meta, nil
}

// Get returns the metadata recorded for (class, oid).
func (s *Storage) Get(ctx context.Context, class, oid string) (Meta, error) {
	key := metaKey(class, oid)
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return Meta{}, err
	}
	var primitive codec.Primitive
	if err := s.codec.Unmarshal(data, &primitive); err != nil {
		return Meta{}, fmt.Errorf("raw: decode meta %s: %w", key, err)
	}
	return metaFromPrimitive(primitive), nil
}

// Bytes reads the entire blob body for (class, oid). For large blobs prefer
// Stream.
func (s *Storage) Bytes(ctx context.Context, class, oid string) ([]byte, error) {
	it, err := s.raw.StreamRawData(ctx, metaKey(class, oid), blobExt, 0)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []byte
	for it.Next() {
		out = append(out, it.Chunk()...)
	}
	if it.Err() != nil {
		return nil, it.Err()
	}
	return out, nil
}

// Stream returns a chunked reader over the blob body for (class, oid).
func (s *Storage) Stream(ctx context.Context, class, oid string, chunkSize int) (kvstore.ByteIterator, error) {
	return s.raw.StreamRawData(ctx, metaKey(class, oid), blobExt, chunkSize)
}

// Path returns the on-disk location of the blob body, when the underlying
// backend supports direct file access.
func (s *Storage) Path(ctx context.Context, class, oid string) (string, error) {
	return s.raw.GetRawDataPath(ctx, metaKey(class, oid), blobExt)
}

// Remove deletes both the metadata entry and the blob body.
func (s *Storage) Remove(ctx context.Context, class, oid string) error {
	key := metaKey(class, oid)
	if err := s.backend.Remove(ctx, key); err != nil {
		return err
	}
	return s.raw.RemoveRawData(ctx, key, blobExt)
}
