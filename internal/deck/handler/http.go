package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/example/deckpress/internal/deck/domain"
	"github.com/example/deckpress/internal/deck/service"
)

const defaultMaxBodyBytes = 100 << 20

// Options tunes the deck endpoints.
type Options struct {
	MaxBodyBytes int64
	// Guard wraps the generation route, e.g. with JWT auth. Optional.
	Guard func(http.Handler) http.Handler
	// Limit throttles every route and runs after Guard. Optional.
	Limit func(http.Handler) http.Handler
}

// HTTP exposes the deck generation endpoint.
type HTTP struct {
	svc    *service.Service
	logger *zap.Logger
	opts   Options
}

// NewHTTP constructs a handler.
func NewHTTP(svc *service.Service, logger *zap.Logger, opts Options) *HTTP {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{svc: svc, logger: logger, opts: opts}
}

// Router builds the chi router with all endpoints.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		if h.opts.Limit != nil {
			r.Use(h.opts.Limit)
		}
		r.Get("/", h.index)
	})
	r.Group(func(r chi.Router) {
		if h.opts.Guard != nil {
			r.Use(h.opts.Guard)
		}
		if h.opts.Limit != nil {
			r.Use(h.opts.Limit)
		}
		r.Use(middleware.RequestSize(h.opts.MaxBodyBytes))
		r.Post("/generate-pptx", h.generate)
	})
	return r
}

func (h *HTTP) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("backend running"))
}

func (h *HTTP) generate(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	var deck domain.Deck
	// an empty body leaves deck empty and fails validation below
	if err := json.NewDecoder(r.Body).Decode(&deck); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := deck.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Info("generating deck", zap.Int("slides", len(deck.Slides)), zap.String("file_name", deck.FileName))

	res, err := h.svc.Generate(r.Context(), r.Header.Get("Idempotency-Key"), deck)
	if err != nil {
		if errors.Is(err, domain.ErrNoSlides) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("deck generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", domain.PPTXMimeType)
	w.Header().Set("Content-Disposition", contentDisposition(res.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	if res.Cached {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		logger.Warn("client went away while streaming deck", zap.Error(err))
		return
	}
	logger.Info("deck sent", zap.String("file", res.FileName), zap.Int("bytes", len(res.Data)), zap.Bool("cached", res.Cached))
}

// contentDisposition carries an ASCII fallback plus the RFC 5987 form for
// clients that understand it.
func contentDisposition(name string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	if fallback == name {
		return `attachment; filename="` + name + `"`
	}
	var enc strings.Builder
	for _, b := range []byte(name) {
		if isAttrChar(b) {
			enc.WriteByte(b)
			continue
		}
		fmt.Fprintf(&enc, "%%%02X", b)
	}
	return `attachment; filename="` + fallback + `"; filename*=UTF-8''` + enc.String()
}

func isAttrChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", b) >= 0
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
