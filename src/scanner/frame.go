package scanner

import (
	"image"
)

// luma is the grayscale plane a frame is reduced to before any
// heuristic runs. Analysis has to finish well inside one frame
// interval, so everything downstream works on this flat byte slice.
type luma struct {
	w, h int
	pix  []uint8
}

func newLuma(img image.Image) *luma {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	l := &luma{w: w, h: h, pix: make([]uint8, w*h)}
	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			copy(l.pix[y*w:(y+1)*w], gray.Pix[y*gray.Stride:y*gray.Stride+w])
		}
		return l
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 weights, 16-bit channels.
			l.pix[y*w+x] = uint8((299*r + 587*g + 114*b) / 1000 >> 8)
		}
	}
	return l
}

func (l *luma) at(x, y int) uint8 {
	return l.pix[y*l.w+x]
}

// minMax samples the plane on a coarse grid; exact extrema are not
// needed for a contrast estimate.
func (l *luma) minMax() (uint8, uint8) {
	step := l.w * l.h / 4096
	if step < 1 {
		step = 1
	}
	lo, hi := uint8(255), uint8(0)
	for i := 0; i < len(l.pix); i += step {
		v := l.pix[i]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// edgeEnergy is the mean absolute horizontal gradient over sampled
// rows. Sharp module boundaries push it up; defocus flattens it.
func (l *luma) edgeEnergy() float64 {
	rowStep := l.h / 64
	if rowStep < 1 {
		rowStep = 1
	}
	var total, count int
	for y := 0; y < l.h; y += rowStep {
		for x := 1; x < l.w; x++ {
			d := int(l.at(x, y)) - int(l.at(x-1, y))
			if d < 0 {
				d = -d
			}
			total += d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

// finderCandidate is one 1:1:3:1:1 run hit on a scanned row.
type finderCandidate struct {
	moduleSize float64
	startX     int
	endX       int
	y          int
}

// findFinderPatterns row-scans for the dark-light-dark-light-dark run
// signature of a QR finder pattern. It is deliberately permissive; the
// caller only needs a size and position estimate, not a lock.
func (l *luma) findFinderPatterns(threshold uint8) []finderCandidate {
	var found []finderCandidate
	rowStep := l.h / 96
	if rowStep < 1 {
		rowStep = 1
	}
	for y := 0; y < l.h; y += rowStep {
		runs := l.rowRuns(y, threshold)
		// Five consecutive runs starting on dark: 1:1:3:1:1.
		for i := 0; i+4 < len(runs); i++ {
			if !runs[i].dark {
				continue
			}
			a, b, c, d, e := runs[i].length, runs[i+1].length, runs[i+2].length, runs[i+3].length, runs[i+4].length
			unit := float64(a+b+c+d+e) / 7.0
			if unit < 1 {
				continue
			}
			if !near(float64(a), unit) || !near(float64(b), unit) ||
				!near(float64(c), 3*unit) || !near(float64(d), unit) ||
				!near(float64(e), unit) {
				continue
			}
			found = append(found, finderCandidate{
				moduleSize: unit,
				startX:     runs[i].start,
				endX:       runs[i+4].start + runs[i+4].length,
				y:          y,
			})
		}
	}
	return found
}

type run struct {
	dark   bool
	start  int
	length int
}

func (l *luma) rowRuns(y int, threshold uint8) []run {
	var runs []run
	cur := run{dark: l.at(0, y) < threshold, start: 0, length: 1}
	for x := 1; x < l.w; x++ {
		dark := l.at(x, y) < threshold
		if dark == cur.dark {
			cur.length++
			continue
		}
		runs = append(runs, cur)
		cur = run{dark: dark, start: x, length: 1}
	}
	runs = append(runs, cur)
	return runs
}

// near allows half a unit of slack either way, with a one pixel floor
// for tiny modules.
func near(v, target float64) bool {
	d := v - target
	if d < 0 {
		d = -d
	}
	return d <= target/2+1
}
