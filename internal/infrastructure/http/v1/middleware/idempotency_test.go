package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicegen/internal/core/apperror"
	appctx "invoicegen/internal/core/context"
	"invoicegen/internal/infrastructure/storage/postgres"
)

type storedKey struct {
	ownerID     string
	operation   string
	requestHash string
	finished    bool
	replay      postgres.IdempotencyReplay
}

// memoryIdempotencyStore mirrors the reservation rules of postgres.IdempotencyStore.
type memoryIdempotencyStore struct {
	mu         sync.Mutex
	keys       map[string]*storedKey
	acquired   int
	completed  []string
	failed     []string
	released   []string
	acquireErr error
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{keys: make(map[string]*storedKey)}
}

func (s *memoryIdempotencyStore) AcquireKey(_ context.Context, key, ownerID, operation, requestHash string) (*postgres.IdempotencyReplay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquired++
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}

	rec, ok := s.keys[key]
	if !ok {
		s.keys[key] = &storedKey{ownerID: ownerID, operation: operation, requestHash: requestHash}
		return nil, nil
	}
	if rec.ownerID != ownerID || rec.operation != operation || rec.requestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	if !rec.finished {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	replay := rec.replay
	return &replay, nil
}

func (s *memoryIdempotencyStore) finish(key string, statusCode int, contentType string, response any) error {
	body, err := json.Marshal(response)
	if err != nil {
		return err
	}
	rec := s.keys[key]
	rec.finished = true
	rec.replay = postgres.IdempotencyReplay{StatusCode: statusCode, ContentType: contentType, Body: body}
	return nil
}

func (s *memoryIdempotencyStore) CompleteKey(_ context.Context, key string, statusCode int, contentType string, response any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, key)
	return s.finish(key, statusCode, contentType, response)
}

func (s *memoryIdempotencyStore) FailKey(_ context.Context, key string, statusCode int, contentType string, response any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, key)
	return s.finish(key, statusCode, contentType, response)
}

func (s *memoryIdempotencyStore) ReleaseKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, key)
	delete(s.keys, key)
	return nil
}

func withOwner(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{UserID: userID, AuthMethod: appctx.AuthMethodAPIKey})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// newIdempotentRouter serves POST /generate-invoice with outcome chosen by the
// "outcome" query parameter and counts handler invocations.
func newIdempotentRouter(store IdempotencyStore, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(), withOwner("user-1"), Idempotency(store))

	handler := func(c *gin.Context) {
		*calls++
		body, _ := io.ReadAll(c.Request.Body)
		switch c.Query("outcome") {
		case "invalid":
			_ = c.Error(apperror.NewValidation("Invalid invoice data"))
		case "crash":
			_ = c.Error(errors.New("connection reset"))
		default:
			resp := gin.H{"invoiceNumber": "INV-1", "echo": string(body)}
			CompleteIdempotency(c, http.StatusOK, "application/json", resp)
			c.JSON(http.StatusOK, resp)
		}
	}
	r.POST("/generate-invoice", handler)
	r.GET("/generate-invoice", handler)
	return r
}

func send(r http.Handler, method, target, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_CompletesAndReplays(t *testing.T) {
	store := newMemoryIdempotencyStore()
	var calls int
	r := newIdempotentRouter(store, &calls)

	first := send(r, http.MethodPost, "/generate-invoice", "key-1", `{"n":1}`)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"invoiceNumber":"INV-1","echo":"{\"n\":1}"}`, first.Body.String())
	assert.Equal(t, []string{"key-1"}, store.completed)
	assert.Equal(t, "POST /generate-invoice", store.keys["key-1"].operation)
	assert.Equal(t, "user-1", store.keys["key-1"].ownerID)

	second := send(r, http.MethodPost, "/generate-invoice", "key-1", `{"n":1}`)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
	assert.Len(t, store.completed, 1)
}

func TestIdempotency_DifferentBodySameKey(t *testing.T) {
	store := newMemoryIdempotencyStore()
	var calls int
	r := newIdempotentRouter(store, &calls)

	require.Equal(t, http.StatusOK, send(r, http.MethodPost, "/generate-invoice", "key-1", `{"n":1}`).Code)

	w := send(r, http.MethodPost, "/generate-invoice", "key-1", `{"n":2}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_ClientErrorIsRecorded(t *testing.T) {
	store := newMemoryIdempotencyStore()
	var calls int
	r := newIdempotentRouter(store, &calls)

	w := send(r, http.MethodPost, "/generate-invoice?outcome=invalid", "key-4xx", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"key-4xx"}, store.failed)
	assert.Empty(t, store.released)
	assert.Empty(t, store.completed)

	replayed := send(r, http.MethodPost, "/generate-invoice?outcome=invalid", "key-4xx", `{}`)
	assert.Equal(t, http.StatusBadRequest, replayed.Code)
	assert.Equal(t, "true", replayed.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, calls)
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	store := newMemoryIdempotencyStore()
	var calls int
	r := newIdempotentRouter(store, &calls)

	w := send(r, http.MethodPost, "/generate-invoice?outcome=crash", "key-5xx", `{}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, []string{"key-5xx"}, store.released)
	assert.Empty(t, store.failed)
	assert.NotContains(t, store.keys, "key-5xx")

	retry := send(r, http.MethodPost, "/generate-invoice?outcome=crash", "key-5xx", `{}`)
	assert.Equal(t, http.StatusInternalServerError, retry.Code)
	assert.Empty(t, retry.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, calls)
}

func TestIdempotency_BodyTooLarge(t *testing.T) {
	store := newMemoryIdempotencyStore()
	var calls int
	r := newIdempotentRouter(store, &calls)

	w := send(r, http.MethodPost, "/generate-invoice", "key-big", strings.Repeat("x", maxIdempotencyBodyBytes+1))
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	var body struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeInvalidInput, body.Code)
	assert.EqualValues(t, maxIdempotencyBodyBytes, body.Details["max_bytes"])
	assert.Zero(t, store.acquired)
	assert.Zero(t, calls)
}

func TestIdempotency_Bypass(t *testing.T) {
	store := newMemoryIdempotencyStore()
	var calls int
	r := newIdempotentRouter(store, &calls)

	assert.Equal(t, http.StatusOK, send(r, http.MethodPost, "/generate-invoice", "", `{}`).Code)
	assert.Equal(t, http.StatusOK, send(r, http.MethodGet, "/generate-invoice", "key-get", "").Code)
	assert.Zero(t, store.acquired)
	assert.Empty(t, store.completed)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_AcquireFailure(t *testing.T) {
	store := newMemoryIdempotencyStore()
	var calls int
	r := newIdempotentRouter(store, &calls)

	store.acquireErr = apperror.NewIdempotencyConflict("key-busy")
	assert.Equal(t, http.StatusConflict, send(r, http.MethodPost, "/generate-invoice", "key-busy", `{}`).Code)

	store.acquireErr = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, send(r, http.MethodPost, "/generate-invoice", "key-busy", `{}`).Code)
	assert.Zero(t, calls)
	assert.Empty(t, store.released)
}
