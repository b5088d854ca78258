// Package detect defines the object-detection boundary. Backends live in
// subpackages; the rest of the bot only sees Detector and Result.
package detect

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrUnreadableImage is returned when the input file cannot be read or
// decoded. Callers treat it as a user input problem, not a detector failure.
var ErrUnreadableImage = errors.New("unreadable image")

// ErrMalformedDetection marks a single raw row that cannot be interpreted.
var ErrMalformedDetection = errors.New("malformed detection")

type Detector interface {
	Detect(ctx context.Context, imagePath string) (*Result, error)
}

// ClassNames maps a class id to the model's class label. It is only valid
// for the Result it came with.
type ClassNames map[int]string

// Row is one raw detector output: x1, y1, x2, y2, confidence, class id.
type Row []float32

const rowLen = 6

// Result is the output of a single Detect call. Zero detections is an empty
// Rows slice with a non-nil Names table.
type Result struct {
	Rows  []Row
	Names ClassNames
}

type Detection struct {
	Box        [4]float32
	Confidence float32
	ClassID    int
}

// Detection interprets the row. Rows with the wrong arity or non-finite
// values yield ErrMalformedDetection.
func (r Row) Detection() (Detection, error) {
	if len(r) != rowLen {
		return Detection{}, fmt.Errorf("%w: expected %d values, got %d", ErrMalformedDetection, rowLen, len(r))
	}
	for i, v := range r {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Detection{}, fmt.Errorf("%w: value %d is not finite", ErrMalformedDetection, i)
		}
	}
	cls := float64(r[5])
	id := int(cls)
	if float64(id) != cls {
		// A fractional class id never resolves in a names table.
		id = -1
	}
	return Detection{
		Box:        [4]float32{r[0], r[1], r[2], r[3]},
		Confidence: r[4],
		ClassID:    id,
	}, nil
}

// NewRow builds a raw row from a decoded detection.
func NewRow(box [4]float32, confidence float32, classID int) Row {
	return Row{box[0], box[1], box[2], box[3], confidence, float32(classID)}
}
