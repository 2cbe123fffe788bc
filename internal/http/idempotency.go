package http

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"atelier/internal/core"
	"atelier/internal/log"
	"atelier/internal/store"

	"golang.org/x/sync/singleflight"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
)

// idempotency replays the stored response of a write request that carries an
// Idempotency-Key it has already seen. Reusing a key with a different
// request is a conflict. Concurrent retries of the same request share one
// execution.
type idempotency struct {
	store store.IdempotencyStore
	group singleflight.Group
	now   func() time.Time
}

func newIdempotency(st store.IdempotencyStore) *idempotency {
	return &idempotency{store: st, now: time.Now}
}

// capturedResponse is a response recorded for storage and replay.
type capturedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newCapturedResponse() *capturedResponse {
	return &capturedResponse{header: http.Header{}, status: http.StatusOK}
}

func (c *capturedResponse) Header() http.Header { return c.header }

func (c *capturedResponse) WriteHeader(code int) { c.status = code }

func (c *capturedResponse) Write(b []byte) (int, error) { return c.body.Write(b) }

func (m *idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}
		key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			writeProblem(w, http.StatusBadRequest, core.KindValidation, "Idempotency-Key too long")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeProblem(w, http.StatusBadRequest, core.KindValidation, errInvalidBody.Error())
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		hash := requestHash(r, body)

		rec, found, err := m.store.GetIdempotency(r.Context(), key)
		if err != nil {
			writeError(w, r, core.Unavailable("idempotency lookup", err))
			return
		}
		if found {
			if rec.RequestHash != hash {
				writeProblem(w, http.StatusConflict, core.KindConflict, "Idempotency-Key reuse with different request")
				return
			}
			replay(w, rec.StatusCode, rec.ContentType, rec.Body, true)
			return
		}

		v, _, shared := m.group.Do(key+"\x00"+hash, func() (any, error) {
			c := newCapturedResponse()
			next.ServeHTTP(c, r)
			if c.status < http.StatusInternalServerError {
				m.save(r, store.IdempotencyRecord{
					Key:         key,
					RequestHash: hash,
					StatusCode:  c.status,
					ContentType: c.header.Get("Content-Type"),
					Body:        c.body.Bytes(),
					CreatedAt:   m.now(),
				})
			}
			return c, nil
		})
		c := v.(*capturedResponse)
		for name, values := range c.header {
			w.Header()[name] = values
		}
		replay(w, c.status, c.header.Get("Content-Type"), c.body.Bytes(), shared)
	})
}

// save stores the response; failing to store it only costs the replay.
func (m *idempotency) save(r *http.Request, rec store.IdempotencyRecord) {
	if err := m.store.SaveIdempotency(r.Context(), rec); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to store idempotent response",
			log.NewFields().WithError(err).WithComponent(log.ComponentHTTP).ToSlice()...)
	}
}

func replay(w http.ResponseWriter, status int, contentType string, body []byte, replayed bool) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if replayed {
		w.Header().Set(HeaderReplayed, "true")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// requestHash fingerprints method, path with query, and body.
func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{'\n'})
	h.Write([]byte(r.URL.RequestURI()))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
