// Package icon renders tray icons for each answer state. Rendering is pure:
// the same Descriptor always yields the same bytes.
package icon

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"screen-answer-llm/src/answer"
)

// Size is the edge length of rendered icons in pixels.
const Size = 32

// Descriptor is everything the renderer needs to know.
type Descriptor struct {
	State answer.State
	// Busy reports an in-flight cycle; it overrides the state's own glyph.
	Busy bool
}

var (
	transparent = color.RGBA{}
	white       = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	idleBG      = color.RGBA{R: 0x5f, G: 0x63, B: 0x68, A: 0xff}
	loadingBG   = color.RGBA{R: 0xe3, G: 0x8b, B: 0x06, A: 0xff}
	letterBG    = color.RGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	freeFormBG  = color.RGBA{R: 0x10, G: 0x7c, B: 0x41, A: 0xff}
	pencilTip   = color.RGBA{R: 0xf4, G: 0xd0, B: 0x8a, A: 0xff}
	dimDot      = color.RGBA{R: 0xa0, G: 0xa4, B: 0xa8, A: 0xff}
)

// Render draws d as a Size x Size PNG.
func Render(d Descriptor) []byte {
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.Draw(img, img.Bounds(), image.NewUniform(transparent), image.Point{}, draw.Src)

	kind := d.State.Kind
	if d.Busy {
		kind = answer.Loading
	}
	switch kind {
	case answer.Loading:
		roundedSquare(img, loadingBG)
		for i := 0; i < 3; i++ {
			fillCircle(img, 8+i*8, 16, 3, white)
		}
	case answer.Letter:
		roundedSquare(img, letterBG)
		drawLetter(img, d.State.Letter)
	case answer.FreeForm:
		roundedSquare(img, freeFormBG)
		drawPencil(img)
	default:
		roundedSquare(img, idleBG)
		drawCornerMarks(img)
		for i := 0; i < 2; i++ {
			c := dimDot
			if i < d.State.UpdatedCorners {
				c = white
			}
			fillCircle(img, 12+i*8, 16, 3, c)
		}
	}

	var buf bytes.Buffer
	// Encoding an in-memory RGBA into a bytes.Buffer cannot fail.
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func roundedSquare(img *image.RGBA, c color.RGBA) {
	const r = 5
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			cx, cy := x, y
			if cx < r {
				cx = r
			} else if cx > Size-1-r {
				cx = Size - 1 - r
			}
			if cy < r {
				cy = r
			} else if cy > Size-1-r {
				cy = Size - 1 - r
			}
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// drawCornerMarks outlines the top-left and bottom-right brackets of a
// selection.
func drawCornerMarks(img *image.RGBA) {
	fillRect(img, image.Rect(5, 5, 12, 7), white)
	fillRect(img, image.Rect(5, 5, 7, 12), white)
	fillRect(img, image.Rect(20, 25, 27, 27), white)
	fillRect(img, image.Rect(25, 20, 27, 27), white)
}

// drawLetter renders r with the 7x13 bitmap face and scales it up so it
// fills most of the icon.
func drawLetter(img *image.RGBA, r rune) {
	face := basicfont.Face7x13
	glyph := image.NewRGBA(image.Rect(0, 0, 8, 13))
	d := &font.Drawer{
		Dst:  glyph,
		Src:  image.NewUniform(white),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(string(r))
	dst := image.Rect(8, 3, 24, 29)
	draw.NearestNeighbor.Scale(img, dst, glyph, glyph.Bounds(), draw.Over, nil)
}

// drawPencil draws a diagonal pencil from the top-right toward the
// bottom-left corner.
func drawPencil(img *image.RGBA) {
	for i := 0; i < 14; i++ {
		x, y := 23-i, 8+i
		fillRect(img, image.Rect(x-2, y-2, x+3, y+3), white)
	}
	for i := 0; i < 4; i++ {
		x, y := 9-i, 22+i
		fillRect(img, image.Rect(x-1, y-1, x+2, y+2), pencilTip)
	}
	fillRect(img, image.Rect(24, 5, 27, 8), pencilTip)
}
