package render

import (
	"bytes"
	"context"
	"fmt"

	ppt "github.com/VantageDataChat/GoPPT"
	"go.uber.org/zap"

	"github.com/example/deckpress/internal/deck/domain"
)

const (
	titleFontSize = 32
	colorWhite    = "FFFFFFFF"
	colorTitle    = "FF1E293B"
)

// Native renders decks in-process with GoPPT.
type Native struct {
	logger *zap.Logger
}

// NewNative constructs the in-process generator.
func NewNative(logger *zap.Logger) *Native {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Native{logger: logger}
}

func (n *Native) Name() string { return "native" }

// Generate builds one slide per deck slide and returns the PPTX package.
func (n *Native) Generate(ctx context.Context, deck domain.Deck) ([]byte, error) {
	if err := deck.Validate(); err != nil {
		return nil, err
	}
	size := deck.SlideSize()
	fit := deck.Fit.Normalize()
	page := Rect{W: size.WidthEMU(), H: size.HeightEMU()}

	p := ppt.New()
	p.GetLayout().SetCustomLayout(page.W, page.H)
	p.GetDocumentProperties().Title = deck.ResolvedFileName()
	p.GetDocumentProperties().Creator = "deckpress"

	for i, s := range deck.Slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var slide *ppt.Slide
		if i == 0 {
			slide = p.GetActiveSlide()
		} else {
			slide = p.CreateSlide()
		}
		slide.SetBackground(ppt.NewFill().SetSolid(ppt.NewColor(colorWhite)))

		placed := 0
		for j, encoded := range s.Images() {
			img, err := DecodeImage(encoded)
			if err != nil {
				n.logger.Warn("skipping slide image", zap.Int("slide", i+1), zap.Int("image", j+1), zap.Error(err))
				continue
			}
			r := FitRect(img.WidthPx, img.HeightPx, page, fit)
			shape := slide.CreateDrawingShape()
			shape.SetImageData(img.Data, img.MimeType)
			shape.SetOffsetX(r.X).SetOffsetY(r.Y)
			shape.SetWidth(r.W).SetHeight(r.H)
			placed++
		}
		if placed == 0 && s.Title != "" {
			n.addTitle(slide, s.Title, page)
		}
		n.logger.Debug("slide added", zap.Int("slide", i+1), zap.String("title", s.Title), zap.Int("images", placed))
	}

	w, err := ppt.NewWriter(p, ppt.WriterPowerPoint2007)
	if err != nil {
		return nil, fmt.Errorf("create pptx writer: %w", err)
	}
	writer, ok := w.(*ppt.PPTXWriter)
	if !ok {
		return nil, fmt.Errorf("unexpected writer type %T", w)
	}
	var buf bytes.Buffer
	if err := writer.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write pptx: %w", err)
	}
	return buf.Bytes(), nil
}

func (n *Native) addTitle(slide *ppt.Slide, title string, page Rect) {
	box := slide.CreateRichTextShape()
	box.SetOffsetX(page.W / 10).SetOffsetY(page.H * 2 / 5)
	box.SetWidth(page.W * 8 / 10).SetHeight(page.H / 5)
	tr := box.CreateTextRun(title)
	tr.GetFont().SetSize(titleFontSize).SetBold(true).SetColor(ppt.NewColor(colorTitle))
	box.GetActiveParagraph().SetAlignment(ppt.NewAlignment().SetHorizontal(ppt.HorizontalCenter))
}
