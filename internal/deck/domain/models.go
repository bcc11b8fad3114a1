package domain

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

var ErrNoSlides = errors.New("no slides to export")

// EMUPerPixel converts 72 DPI pixels to English Metric Units.
const EMUPerPixel = 12700

const (
	DefaultWidthPx  = 720
	DefaultHeightPx = 540
	DefaultFileName = "presentation"
	PPTXMimeType    = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

type FitMode string

const (
	FitContain FitMode = "contain"
	FitStretch FitMode = "stretch"
)

// Normalize maps unknown or empty modes to FitContain.
func (m FitMode) Normalize() FitMode {
	switch FitMode(strings.ToLower(string(m))) {
	case FitStretch:
		return FitStretch
	default:
		return FitContain
	}
}

type Size struct {
	WidthPx  int `json:"width"`
	HeightPx int `json:"height"`
}

func (s Size) WidthEMU() int64  { return int64(s.WidthPx) * EMUPerPixel }
func (s Size) HeightEMU() int64 { return int64(s.HeightPx) * EMUPerPixel }

type Element struct {
	Type        string `json:"type"`
	ImageBase64 string `json:"imageBase64,omitempty"`
}

type Slide struct {
	Title       string    `json:"title,omitempty"`
	ImageBase64 string    `json:"imageBase64,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	Elements    []Element `json:"elements,omitempty"`
}

// Images returns the encoded images of a slide in drawing order.
func (s Slide) Images() []string {
	var out []string
	if s.ImageBase64 != "" {
		out = append(out, s.ImageBase64)
	}
	for _, el := range s.Elements {
		if el.Type == "image" && el.ImageBase64 != "" {
			out = append(out, el.ImageBase64)
		}
	}
	return out
}

type Deck struct {
	FileName string  `json:"fileName,omitempty"`
	Fit      FitMode `json:"fit,omitempty"`
	Slides   []Slide `json:"slides"`
}

func (d Deck) Validate() error {
	if len(d.Slides) == 0 {
		return ErrNoSlides
	}
	return nil
}

// SlideSize returns the dimensions of the first slide declaring both width
// and height, falling back to a 10in x 7.5in landscape page.
func (d Deck) SlideSize() Size {
	for _, s := range d.Slides {
		if s.Width > 0 && s.Height > 0 {
			return Size{WidthPx: s.Width, HeightPx: s.Height}
		}
	}
	return Size{WidthPx: DefaultWidthPx, HeightPx: DefaultHeightPx}
}

// ResolvedFileName is the download name, always ending in .pptx.
func (d Deck) ResolvedFileName() string {
	name := strings.TrimSpace(d.FileName)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == '"' || r == '\'':
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	if strings.HasSuffix(strings.ToLower(name), ".pptx") {
		name = name[:len(name)-len(".pptx")]
	}
	name = strings.Trim(name, ". ")
	if name == "" {
		name = DefaultFileName
	}
	return name + ".pptx"
}

type DeckEvent struct {
	ID        uuid.UUID `json:"id"`
	FileName  string    `json:"file_name"`
	Slides    int       `json:"slides"`
	Bytes     int       `json:"bytes"`
	Generator string    `json:"generator"`
	Cached    bool      `json:"cached"`
	CreatedAt time.Time `json:"created_at"`
}

type Generator interface {
	Name() string
	Generate(ctx context.Context, deck Deck) ([]byte, error)
}

type IdempotencyRepository interface {
	GetResponse(ctx context.Context, key string) ([]byte, bool, error)
	PutResponse(ctx context.Context, key string, payload []byte) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event DeckEvent) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
