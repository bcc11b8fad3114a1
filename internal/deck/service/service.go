package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/deckpress/internal/deck/domain"
)

// Service validates decks and hands them to the configured generator.
type Service struct {
	generator  domain.Generator
	events     domain.EventPublisher
	idempotent domain.IdempotencyRepository
	clock      domain.Clock
	logger     *zap.Logger
	tracer     trace.Tracer
}

// New constructs a Service. events and idem may be nil.
func New(generator domain.Generator, events domain.EventPublisher, idem domain.IdempotencyRepository, clock domain.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		generator:  generator,
		events:     events,
		idempotent: idem,
		clock:      clock,
		logger:     logger,
		tracer:     otel.Tracer("deck.service"),
	}
}

// Result is a rendered deck ready to be streamed.
type Result struct {
	FileName string
	Data     []byte
	Slides   int
	Cached   bool
}

// Generate renders deck. A non-empty key makes repeated requests return the
// first rendering.
func (s *Service) Generate(ctx context.Context, key string, deck domain.Deck) (Result, error) {
	if err := deck.Validate(); err != nil {
		return Result{}, err
	}
	res := Result{FileName: deck.ResolvedFileName(), Slides: len(deck.Slides)}

	if key != "" && s.idempotent != nil {
		if cached, ok := s.lookup(ctx, key); ok {
			idempotentHits.Inc()
			s.publish(ctx, cached)
			return cached, nil
		}
	}

	ctx, span := s.tracer.Start(ctx, "deck.generate", trace.WithAttributes(
		attribute.String("deck.generator", s.generator.Name()),
		attribute.Int("deck.slides", len(deck.Slides)),
	))
	defer span.End()

	start := time.Now()
	data, err := s.generator.Generate(ctx, deck)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		generationDuration.WithLabelValues(s.generator.Name(), "error").Observe(elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("generate deck: %w", err)
	}
	generationDuration.WithLabelValues(s.generator.Name(), "ok").Observe(elapsed)
	slidesTotal.WithLabelValues(s.generator.Name()).Add(float64(len(deck.Slides)))
	deckBytes.Observe(float64(len(data)))
	span.SetAttributes(attribute.Int("deck.bytes", len(data)))

	res.Data = data
	if key != "" && s.idempotent != nil {
		if err := s.idempotent.PutResponse(ctx, key, encodeResult(res)); err != nil {
			s.logger.Warn("idempotency store failed", zap.String("key", key), zap.Error(err))
		}
	}

	s.logger.Info("deck generated",
		zap.String("file", res.FileName),
		zap.Int("slides", res.Slides),
		zap.Int("bytes", len(data)),
		zap.String("generator", s.generator.Name()))
	s.publish(ctx, res)
	return res, nil
}

// lookup returns the result stored under key. Unreadable entries count as a miss.
func (s *Service) lookup(ctx context.Context, key string) (Result, bool) {
	raw, ok, err := s.idempotent.GetResponse(ctx, key)
	if err != nil {
		s.logger.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return Result{}, false
	}
	if !ok {
		return Result{}, false
	}
	res, err := decodeResult(raw)
	if err != nil {
		s.logger.Warn("discarding unreadable idempotent entry", zap.String("key", key), zap.Error(err))
		return Result{}, false
	}
	res.Cached = true
	return res, true
}

func (s *Service) publish(ctx context.Context, res Result) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, domain.DeckEvent{
		ID:        uuid.New(),
		FileName:  res.FileName,
		Slides:    res.Slides,
		Bytes:     len(res.Data),
		Generator: s.generator.Name(),
		Cached:    res.Cached,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		s.logger.Warn("deck event publish failed", zap.Error(err))
	}
}

type storedResult struct {
	FileName string `json:"file_name"`
	Slides   int    `json:"slides"`
	Data     []byte `json:"data"`
}

func encodeResult(res Result) []byte {
	b, _ := json.Marshal(storedResult{FileName: res.FileName, Slides: res.Slides, Data: res.Data})
	return b
}

func decodeResult(b []byte) (Result, error) {
	var stored storedResult
	if err := json.Unmarshal(b, &stored); err != nil {
		return Result{}, err
	}
	if stored.FileName == "" || len(stored.Data) == 0 {
		return Result{}, errors.New("incomplete idempotent entry")
	}
	return Result{FileName: stored.FileName, Slides: stored.Slides, Data: stored.Data}, nil
}
