package render

import "github.com/example/deckpress/internal/deck/domain"

// Rect is a placement in EMU.
type Rect struct {
	X, Y, W, H int64
}

// FitRect places an image of imgW x imgH pixels inside box. Stretch, or an
// image with unknown dimensions, fills the box; contain keeps the aspect
// ratio and centres the result.
func FitRect(imgW, imgH int, box Rect, mode domain.FitMode) Rect {
	if mode.Normalize() == domain.FitStretch || imgW <= 0 || imgH <= 0 || box.W <= 0 || box.H <= 0 {
		return box
	}
	// compare imgW/imgH with box.W/box.H without floats
	if int64(imgW)*box.H >= int64(imgH)*box.W {
		h := box.W * int64(imgH) / int64(imgW)
		return Rect{X: box.X, Y: box.Y + (box.H-h)/2, W: box.W, H: h}
	}
	w := box.H * int64(imgW) / int64(imgH)
	return Rect{X: box.X + (box.W-w)/2, Y: box.Y, W: w, H: box.H}
}
