package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/deckpress/internal/deck/domain"
	"github.com/example/deckpress/internal/deck/handler"
	"github.com/example/deckpress/internal/deck/repository"
	"github.com/example/deckpress/internal/deck/service"
)

type stubGenerator struct {
	calls int
	last  domain.Deck
	out   []byte
	err   error
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(_ context.Context, deck domain.Deck) ([]byte, error) {
	s.calls++
	s.last = deck
	return s.out, s.err
}

func newRouter(gen *stubGenerator, opts handler.Options) http.Handler {
	svc := service.New(gen, nil, repository.NewMemoryIdempotencyRepo(time.Minute), nil, nil)
	return handler.NewHTTP(svc, nil, opts).Router()
}

func post(t *testing.T, router http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/generate-pptx", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["error"]
}

func TestGenerateStreamsPresentation(t *testing.T) {
	gen := &stubGenerator{out: []byte("PK\x03\x04deck")}
	router := newRouter(gen, handler.Options{})

	w := post(t, router, `{"fileName":"q3","slides":[{"title":"a","imageBase64":"AAAA"},{"title":"b"}]}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, domain.PPTXMimeType, w.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="q3.pptx"`, w.Header().Get("Content-Disposition"))
	require.Equal(t, "PK\x03\x04deck", w.Body.String())
	require.Len(t, gen.last.Slides, 2)
	require.Equal(t, "AAAA", gen.last.Slides[0].ImageBase64)
}

func TestGenerateDefaultsFileName(t *testing.T) {
	router := newRouter(&stubGenerator{out: []byte("PK")}, handler.Options{})

	w := post(t, router, `{"slides":[{"title":"a"}]}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `attachment; filename="presentation.pptx"`, w.Header().Get("Content-Disposition"))
}

func TestGenerateEncodesNonASCIIFileName(t *testing.T) {
	router := newRouter(&stubGenerator{out: []byte("PK")}, handler.Options{})

	w := post(t, router, `{"fileName":"Informe año","slides":[{"title":"a"}]}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t,
		`attachment; filename="Informe a_o.pptx"; filename*=UTF-8''Informe%20a%C3%B1o.pptx`,
		w.Header().Get("Content-Disposition"))
}

func TestGenerateWithoutSlidesIsBadRequest(t *testing.T) {
	for _, body := range []string{"", `{}`, `{"slides":[]}`, `{"slides":null,"fileName":"x"}`} {
		gen := &stubGenerator{}
		w := post(t, newRouter(gen, handler.Options{}), body, nil)

		require.Equal(t, http.StatusBadRequest, w.Code, body)
		require.Equal(t, domain.ErrNoSlides.Error(), errorBody(t, w))
		require.Zero(t, gen.calls)
	}
}

func TestGenerateMalformedJSON(t *testing.T) {
	w := post(t, newRouter(&stubGenerator{}, handler.Options{}), `{"slides":[`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotEmpty(t, errorBody(t, w))
}

func TestGenerateFailureIsServerError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("python3: not found")}
	w := post(t, newRouter(gen, handler.Options{}), `{"slides":[{"title":"a"}]}`, nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, errorBody(t, w), "python3: not found")
}

func TestGenerateBodyLimit(t *testing.T) {
	router := newRouter(&stubGenerator{out: []byte("PK")}, handler.Options{MaxBodyBytes: 32})
	w := post(t, router, `{"slides":[{"title":"`+strings.Repeat("x", 64)+`"}]}`, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestGenerateReplaysIdempotentRequests(t *testing.T) {
	gen := &stubGenerator{out: []byte("first")}
	router := newRouter(gen, handler.Options{})
	headers := map[string]string{"Idempotency-Key": "abc"}

	w := post(t, router, `{"slides":[{"title":"a"}]}`, headers)
	require.Equal(t, http.StatusOK, w.Code)

	gen.out = []byte("second")
	w = post(t, router, `{"slides":[{"title":"a"}]}`, headers)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "first", w.Body.String())
	require.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
	require.Equal(t, 1, gen.calls)
}

func TestGuardWrapsOnlyGeneration(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	router := newRouter(&stubGenerator{out: []byte("PK")}, handler.Options{Guard: deny})

	w := post(t, router, `{"slides":[{"title":"a"}]}`, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "backend running", rec.Body.String())
}

func TestLimitRunsAfterGuard(t *testing.T) {
	type ctxKey struct{}
	var order []string
	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "guard")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, "user-1")))
		})
	}
	var seen any
	limit := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "limit")
			seen = r.Context().Value(ctxKey{})
			next.ServeHTTP(w, r)
		})
	}
	router := newRouter(&stubGenerator{out: []byte("PK")}, handler.Options{Guard: guard, Limit: limit})

	w := post(t, router, `{"slides":[{"title":"a"}]}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"guard", "limit"}, order)
	require.Equal(t, "user-1", seen)

	order = nil
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"limit"}, order)
}
