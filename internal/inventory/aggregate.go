// Package inventory turns raw detections into per-item counts.
package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vbonduro/lootbot/internal/detect"
)

// ErrInvalidInput means the detector gave us nothing usable for the whole
// image: no result structure at all, or only malformed rows.
var ErrInvalidInput = errors.New("invalid detection input")

// Counts maps an item name to how many times it was detected.
type Counts map[string]int

// ItemCount is one entry of Counts in display order.
type ItemCount struct {
	Name  string
	Count int
}

// Sorted returns the entries by count descending, then by name.
func (c Counts) Sorted() []ItemCount {
	out := make([]ItemCount, 0, len(c))
	for name, n := range c {
		out = append(out, ItemCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Total is the number of detections that mapped to a tracked item.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Aggregate tallies a detector result against the vocabulary.
func Aggregate(result *detect.Result, vocab *Vocabulary, logger *slog.Logger) (Counts, error) {
	if result == nil || result.Names == nil {
		return nil, fmt.Errorf("%w: detector returned no result structure", ErrInvalidInput)
	}
	counts, malformed := Tally(result.Rows, result.Names, vocab, logger)
	if len(result.Rows) > 0 && malformed == len(result.Rows) {
		return nil, fmt.Errorf("%w: all %d detections are malformed", ErrInvalidInput, malformed)
	}
	return counts, nil
}

// Tally counts rows whose class resolves through names to a vocabulary
// label. It returns the counts and the number of malformed rows skipped.
func Tally(rows []detect.Row, names detect.ClassNames, vocab *Vocabulary, logger *slog.Logger) (Counts, int) {
	counts := make(Counts)
	malformed := 0
	for i, row := range rows {
		det, err := row.Detection()
		if err != nil {
			malformed++
			logger.Warn("skipping detection", "index", i, "error", err)
			continue
		}
		label, ok := names[det.ClassID]
		if !ok {
			logger.Warn("skipping detection with unknown class id", "index", i, "class_id", det.ClassID)
			continue
		}
		item, ok := vocab.Lookup(label)
		if !ok {
			continue
		}
		counts[item]++
	}
	logger.Debug("inventory tallied", "detections", len(rows), "items", len(counts), "total", counts.Total())
	return counts, malformed
}
