package onnx

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"

	"github.com/vbonduro/lootbot/internal/detect"
)

type candidate struct {
	x1, y1, x2, y2 float32
	score          float32
	class          int
}

// anchorCount is the number of prediction cells a YOLOv8 head produces for
// a square input: one per cell at strides 8, 16 and 32.
func anchorCount(inputSize int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		side := inputSize / stride
		n += side * side
	}
	return n
}

// decodeOutput reads a (1, 4+classes, anchors) YOLOv8 output. Boxes are
// center/size in input pixels; they are mapped back to the source image
// and clamped to its bounds.
func decodeOutput(output []float32, classes, anchors, inputSize, width, height int, threshold float32) ([]candidate, error) {
	if want := (4 + classes) * anchors; len(output) != want {
		return nil, fmt.Errorf("model output has %d values, expected %d", len(output), want)
	}

	scaleX := float32(width) / float32(inputSize)
	scaleY := float32(height) / float32(inputSize)
	maxX, maxY := float32(width), float32(height)

	var out []candidate
	for a := 0; a < anchors; a++ {
		best, bestScore := -1, float32(-1)
		for c := 0; c < classes; c++ {
			if s := output[(4+c)*anchors+a]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if bestScore < threshold {
			continue
		}

		xc, yc := output[a], output[anchors+a]
		w, h := output[2*anchors+a], output[3*anchors+a]
		out = append(out, candidate{
			x1:    clamp((xc-w/2)*scaleX, maxX),
			y1:    clamp((yc-h/2)*scaleY, maxY),
			x2:    clamp((xc+w/2)*scaleX, maxX),
			y2:    clamp((yc+h/2)*scaleY, maxY),
			score: bestScore,
			class: best,
		})
	}
	return out, nil
}

func clamp(v, hi float32) float32 {
	return math32.Min(math32.Max(v, 0), hi)
}

func iou(a, b candidate) float32 {
	ix := math32.Max(0, math32.Min(a.x2, b.x2)-math32.Max(a.x1, b.x1))
	iy := math32.Max(0, math32.Min(a.y2, b.y2)-math32.Max(a.y1, b.y1))
	inter := ix * iy
	union := (a.x2-a.x1)*(a.y2-a.y1) + (b.x2-b.x1)*(b.y2-b.y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// suppress runs greedy class-aware non-maximum suppression. Only boxes of
// the same class suppress each other, so a stack of pipes lying on scrap is
// still counted as both.
func suppress(cands []candidate, threshold float32) []candidate {
	sorted := append([]candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })

	kept := make([]candidate, 0, len(sorted))
	used := make([]bool, len(sorted))
	for i := range sorted {
		if used[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if used[j] || sorted[j].class != sorted[i].class {
				continue
			}
			if iou(sorted[i], sorted[j]) > threshold {
				used[j] = true
			}
		}
	}
	return kept
}

func toRows(cands []candidate) []detect.Row {
	rows := make([]detect.Row, 0, len(cands))
	for _, c := range cands {
		rows = append(rows, detect.NewRow([4]float32{c.x1, c.y1, c.x2, c.y2}, c.score, c.class))
	}
	return rows
}
