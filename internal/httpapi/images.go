package httpapi

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"finsview/internal/domain"
)

const (
	imgWidth  = 640
	imgHeight = 240
	imgPad    = 8
)

var (
	bgColor   = color.RGBA{0x1e, 0x1e, 0x2e, 0xff}
	lineColor = color.RGBA{0x89, 0xb4, 0xfa, 0xff}
	barColor  = color.RGBA{0xa6, 0xe3, 0xa1, 0xff}
	zeroColor = color.RGBA{0x6c, 0x70, 0x86, 0xff}
)

func newCanvas() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, imgWidth, imgHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bgColor}, image.Point{}, draw.Src)
	return img
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderChart draws the closes of bars as a line on a log scale.
func renderChart(bars []domain.PriceBar) ([]byte, error) {
	img := newCanvas()
	if len(bars) < 2 {
		return encodePNG(img)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range bars {
		v := math.Log(math.Max(b.Close, 1e-9))
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}

	w := float64(imgWidth - 2*imgPad)
	h := float64(imgHeight - 2*imgPad)
	point := func(i int) (int, int) {
		v := math.Log(math.Max(bars[i].Close, 1e-9))
		x := imgPad + int(float64(i)/float64(len(bars)-1)*w)
		y := imgPad + int((1-(v-lo)/(hi-lo))*h)
		return x, y
	}

	x0, y0 := point(0)
	for i := 1; i < len(bars); i++ {
		x1, y1 := point(i)
		drawLine(img, x0, y0, x1, y1, lineColor)
		x0, y0 = x1, y1
	}
	return encodePNG(img)
}

// renderHistogram bins values into bins buckets over [min, max]; values
// outside the range land in the edge buckets.
func renderHistogram(values []float64, bins int, min, max float64) ([]byte, error) {
	img := newCanvas()
	if bins <= 0 || max <= min {
		return encodePNG(img)
	}

	counts := make([]int, bins)
	peak := 0
	for _, v := range values {
		i := int((v - min) / (max - min) * float64(bins))
		i = int(math.Max(0, math.Min(float64(bins-1), float64(i))))
		counts[i]++
		if counts[i] > peak {
			peak = counts[i]
		}
	}

	w := float64(imgWidth-2*imgPad) / float64(bins)
	h := float64(imgHeight - 2*imgPad)
	for i, c := range counts {
		if c == 0 {
			continue
		}
		x0 := imgPad + int(float64(i)*w)
		x1 := imgPad + int(float64(i+1)*w) - 1
		if x1 < x0 {
			x1 = x0
		}
		top := imgHeight - imgPad - int(float64(c)/float64(peak)*h)
		draw.Draw(img, image.Rect(x0, top, x1+1, imgHeight-imgPad), &image.Uniform{C: barColor}, image.Point{}, draw.Src)
	}

	if min < 0 && max > 0 {
		x := imgPad + int(-min/(max-min)*float64(imgWidth-2*imgPad))
		drawLine(img, x, imgPad, x, imgHeight-imgPad, zeroColor)
	}
	return encodePNG(img)
}

// drawLine is Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
