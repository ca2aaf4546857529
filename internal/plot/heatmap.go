package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Grid is a labeled matrix of values drawn as colored cells.
type Grid struct {
	Rows   []string
	Cols   []string
	Values [][]float64
	// Mask hides cells where true. Nil draws every cell.
	Mask [][]bool
	// Min and Max bound the color scale. When equal they are taken from the data.
	Min, Max float64
	// Diverging centers the scale at zero (blue-white-red). Otherwise a
	// sequential light-to-dark scale is used.
	Diverging bool
	// Annotate prints each value inside its cell.
	Annotate bool
	// RowGroups, when set, adds a class color strip left of the cells and a legend.
	RowGroups []string
}

// UpperMask hides the strict upper triangle of an n-by-n grid.
func UpperMask(n int) [][]bool {
	m := make([][]bool, n)
	for i := range m {
		m[i] = make([]bool, n)
		for j := i + 1; j < n; j++ {
			m[i][j] = true
		}
	}
	return m
}

func (g Grid) valid() error {
	if len(g.Rows) == 0 || len(g.Cols) == 0 || len(g.Values) != len(g.Rows) {
		return fmt.Errorf("%w: %dx%d grid with %d value rows", ErrNoData, len(g.Rows), len(g.Cols), len(g.Values))
	}
	if g.RowGroups != nil && len(g.RowGroups) != len(g.Rows) {
		return fmt.Errorf("%w: %d row groups for %d rows", ErrNoData, len(g.RowGroups), len(g.Rows))
	}
	for i, r := range g.Values {
		if len(r) != len(g.Cols) {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrNoData, i, len(r), len(g.Cols))
		}
	}
	return nil
}

func (g Grid) bounds() (float64, float64) {
	if g.Min != g.Max {
		return g.Min, g.Max
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range g.Values {
		for _, v := range r {
			if math.IsNaN(v) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if g.Diverging {
		m := math.Max(math.Abs(lo), math.Abs(hi))
		if m == 0 {
			m = 1
		}
		return -m, m
	}
	if lo == hi {
		return lo - 0.5, hi + 0.5
	}
	return lo, hi
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

func cellColor(v, lo, hi float64, diverging bool) color.RGBA {
	if math.IsNaN(v) {
		return color.RGBA{R: 220, G: 220, B: 220, A: 255}
	}
	t := (v - lo) / (hi - lo)
	t = math.Max(0, math.Min(1, t))
	if diverging {
		if t < 0.5 {
			s := t * 2
			return color.RGBA{R: lerp(59, 247, s), G: lerp(76, 247, s), B: lerp(192, 247, s), A: 255}
		}
		s := (t - 0.5) * 2
		return color.RGBA{R: lerp(247, 180, s), G: lerp(247, 4, s), B: lerp(247, 38, s), A: 255}
	}
	return color.RGBA{R: lerp(255, 8, t), G: lerp(247, 48, t), B: lerp(236, 107, t), A: 255}
}

var face = basicfont.Face7x13

func textWidth(s string) int {
	return (&font.Drawer{Face: face}).MeasureString(s).Ceil()
}

func drawText(dst draw.Image, s string, x, y int, c color.Color) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face, Dot: fixed.P(x, y)}
	d.DrawString(s)
}

func titleBand(title string) int {
	if title == "" {
		return 0
	}
	return 24
}

func drawTitle(dst draw.Image, title string) {
	if title == "" {
		return
	}
	w := dst.Bounds().Dx()
	drawText(dst, title, max(4, (w-textWidth(title))/2), 17, color.Black)
}

// drawVertical writes s top-to-bottom, one glyph per line.
func drawVertical(dst draw.Image, s string, x, y int) {
	h := face.Metrics().Height.Ceil()
	for i, r := range []rune(s) {
		drawText(dst, string(r), x, y+(i+1)*h, color.Black)
	}
}

// Heatmap draws g as a cell grid with row labels on the left, column labels
// underneath and a color bar on the right.
func Heatmap(path string, g Grid, opt Options) (string, error) {
	if err := g.valid(); err != nil {
		return "", err
	}
	lo, hi := g.bounds()
	nr, nc := len(g.Rows), len(g.Cols)

	cell := 36
	if opt.Width > 0 {
		cell = max(6, opt.Width/(nc+8))
	}
	rowLab := 0
	for _, r := range g.Rows {
		rowLab = max(rowLab, textWidth(r))
	}
	colLab := 0
	for _, c := range g.Cols {
		colLab = max(colLab, len([]rune(c)))
	}
	colLab *= face.Metrics().Height.Ceil()
	groups, groupIdx := distinct(g.RowGroups)
	strip := 0
	if groups != nil {
		strip = 14
	}
	left := rowLab + 10 + strip
	top := titleBand(opt.Title) + 6
	barW := 70
	for _, gr := range groups {
		barW = max(barW, textWidth(gr)+40)
	}
	bh := max(nr*cell, 60+16*len(groups))
	width := left + nc*cell + barW
	height := top + bh + colLab + 10

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	drawTitle(img, opt.Title)

	for i := 0; i < nr; i++ {
		y := top + i*cell
		drawText(img, g.Rows[i], left-6-strip-textWidth(g.Rows[i]), y+cell/2+4, color.Black)
		if groups != nil {
			draw.Draw(img, image.Rect(left-strip, y, left-3, y+cell-1), image.NewUniform(Color(groupIdx[g.RowGroups[i]])), image.Point{}, draw.Src)
		}
		for j := 0; j < nc; j++ {
			if g.Mask != nil && g.Mask[i][j] {
				continue
			}
			x := left + j*cell
			v := g.Values[i][j]
			c := cellColor(v, lo, hi, g.Diverging)
			draw.Draw(img, image.Rect(x, y, x+cell-1, y+cell-1), image.NewUniform(c), image.Point{}, draw.Src)
			if g.Annotate && cell >= 28 && !math.IsNaN(v) {
				s := strconv.FormatFloat(v, 'f', 2, 64)
				fg := color.Color(color.Black)
				if luminance(c) < 110 {
					fg = color.White
				}
				drawText(img, s, x+(cell-textWidth(s))/2, y+cell/2+4, fg)
			}
		}
	}
	for j, c := range g.Cols {
		drawVertical(img, c, left+j*cell+cell/2-3, top+nr*cell)
	}

	// color bar, then the class legend under it
	bx := left + nc*cell + 12
	scale := bh - 16*len(groups)
	for y := 0; y < scale; y++ {
		v := hi - (hi-lo)*float64(y)/float64(scale-1)
		draw.Draw(img, image.Rect(bx, top+y, bx+14, top+y+1), image.NewUniform(cellColor(v, lo, hi, g.Diverging)), image.Point{}, draw.Src)
	}
	drawText(img, strconv.FormatFloat(hi, 'g', 3, 64), bx+18, top+10, color.Black)
	drawText(img, strconv.FormatFloat(lo, 'g', 3, 64), bx+18, top+scale, color.Black)
	for k, gr := range groups {
		y := top + scale + 4 + 16*k
		draw.Draw(img, image.Rect(bx, y, bx+12, y+12), image.NewUniform(Color(k)), image.Point{}, draw.Src)
		drawText(img, gr, bx+18, y+11, color.Black)
	}

	out, err := encode(img)
	if err != nil {
		return "", err
	}
	return save(path, out)
}

// distinct returns the sorted distinct values of vals and their positions.
func distinct(vals []string) ([]string, map[string]int) {
	if vals == nil {
		return nil, nil
	}
	idx := map[string]int{}
	var out []string
	for _, v := range vals {
		if _, ok := idx[v]; !ok {
			idx[v] = 0
			out = append(out, v)
		}
	}
	sort.Strings(out)
	for i, v := range out {
		idx[v] = i
	}
	return out, idx
}

func luminance(c color.RGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}
