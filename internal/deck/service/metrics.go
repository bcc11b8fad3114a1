package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deck_generation_seconds",
		Help:    "Time spent rendering a deck, grouped by generator and outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"generator", "result"})

	slidesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deck_slides_total",
		Help: "Slides rendered successfully.",
	}, []string{"generator"})

	deckBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "deck_bytes",
		Help:    "Size of generated PPTX files.",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
	})

	idempotentHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deck_idempotent_hits_total",
		Help: "Requests answered from the idempotency store.",
	})
)
