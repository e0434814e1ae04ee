// Package web exposes object.Storage over HTTP: a thin net/http handler
// with no router dependency, grounded on the teacher's stdlib-only health
// checker style rather than its gRPC-based cluster API (this layer has no
// cluster membership or mTLS concerns to justify that weight).
package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/loqor/objectstore/codec"
	"github.com/loqor/objectstore/kvstore"
	"github.com/loqor/objectstore/log"
	"github.com/loqor/objectstore/metrics"
	"github.com/loqor/objectstore/object"
)

// Handler serves GET/PUT/DELETE on /{collection}/{oid} and GET on
// /{collection} (with ?start=&count= paging) against a Storage.
type Handler struct {
	storage *object.Storage
	codec   codec.Codec
}

// New returns a Handler backed by storage. c is kept on the Handler but is
// not used for request or response bodies; those are read and written with
// encoding/json.
func New(storage *object.Storage, c codec.Codec) *Handler {
	return &Handler{storage: storage, codec: c}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	w.Header().Set("X-Request-Id", requestID)
	requestLog := log.WithComponent("web").With().Str("request_id", requestID).Logger()
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method)
	}()
	requestLog.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request received")

	collection, oid, ok := splitPath(r.URL.Path)
	if !ok {
		metrics.APIRequestsTotal.WithLabelValues(r.Method, "404").Inc()
		http.NotFound(w, r)
		return
	}
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	if oid == "" {
		h.serveCollection(sw, r, collection)
	} else {
		switch r.Method {
		case http.MethodGet:
			h.serveGet(sw, r, collection, oid)
		case http.MethodPut:
			h.servePut(sw, r, collection, oid)
		case http.MethodDelete:
			h.serveDelete(sw, r, collection, oid)
		default:
			sw.Header().Set("Allow", "GET, PUT, DELETE")
			http.Error(sw, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
	metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
}

// statusWriter records the status code written through it so ServeHTTP can
// label the request-count metric after the handler has already responded.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func splitPath(p string) (collection, oid string, ok bool) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", "", false
	}
	parts := strings.SplitN(p, "/", 2)
	if len(parts) == 1 {
		return parts[0], "", true
	}
	return parts[0], parts[1], true
}

func (h *Handler) serveGet(w http.ResponseWriter, r *http.Request, collection, oid string) {
	obj, err := h.storage.Get(r.Context(), collection, oid)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeObject(w, obj)
}

func (h *Handler) servePut(w http.ResponseWriter, r *http.Request, collection, oid string) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	exists, err := h.storage.Has(r.Context(), collection, oid)
	if err != nil {
		writeError(w, err)
		return
	}

	var obj object.StoredObject
	if exists {
		obj, err = h.storage.Get(r.Context(), collection, oid)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := applyFields(obj, body); err != nil {
			writeError(w, err)
			return
		}
		if err := h.storage.Save(r.Context(), obj); err != nil {
			writeError(w, err)
			return
		}
	} else {
		obj, err = h.storage.CreateAt(r.Context(), collection, oid, func(o object.StoredObject) error {
			return applyFields(o, body)
		})
		if err != nil {
			writeError(w, err)
			return
		}
	}
	h.writeObject(w, obj)
}

func (h *Handler) serveDelete(w http.ResponseWriter, r *http.Request, collection, oid string) {
	if err := h.storage.Remove(r.Context(), collection, oid); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serveCollection(w http.ResponseWriter, r *http.Request, collection string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count <= 0 {
		count = 50
	}

	keys, err := h.storage.Keys(r.Context(), collection, kvstore.OrderAscending)
	if err != nil {
		writeError(w, err)
		return
	}
	if start < 0 {
		start = 0
	}
	if start > len(keys) {
		start = len(keys)
	}
	end := start + count
	if end > len(keys) {
		end = len(keys)
	}
	page := keys[start:end]

	objs := make([]map[string]any, 0, len(page))
	for _, oid := range page {
		obj, err := h.storage.Get(r.Context(), collection, oid)
		if err != nil {
			writeError(w, err)
			return
		}
		objs = append(objs, exportForWire(obj))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"total": len(keys), "items": objs})
}

// applyFields applies every schema-declared property in body to obj via
// its exported SetProperty hook path, skipping reserved keys (oid, type,
// updates) the client should never set directly.
func applyFields(obj object.StoredObject, body map[string]any) error {
	for name, value := range body {
		switch name {
		case "oid", "type", "updates":
			continue
		}
		if err := obj.Base().SetProperty(name, value); err != nil {
			return err
		}
	}
	return nil
}

func exportForWire(obj object.StoredObject) map[string]any {
	return obj.Base().Export()
}

func (h *Handler) writeObject(w http.ResponseWriter, obj object.StoredObject) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(exportForWire(obj))
}

func writeError(w http.ResponseWriter, err error) {
	switch err {
	case kvstore.ErrNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case kvstore.ErrExists:
		http.Error(w, err.Error(), http.StatusConflict)
	case object.ErrSchemaViolation, object.ErrCardinality:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case object.ErrUnknownType:
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
