package inventory

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// defaultCategories maps the detector's class labels to the item names the
// bot talks about.
var defaultCategories = map[string]string{
	"Sulfur_stack":       "Sulfur",
	"gunpowder":          "Gunpowder",
	"explosives":         "Explosives",
	"cooked_sulfur":      "Cooked Sulfur",
	"pipes":              "Pipes",
	"AK47":               "AK47",
	"Metal_ore":          "Metal Ore",
	"Diesel":             "Diesel",
	"High_quality_metal": "High-Quality Metal",
	"Crude_oil":          "Crude Oil",
	"Cloth":              "Cloth",
	"Scrap":              "Scrap",
	"HQM_ore":            "HQM Ore",
	"Rocket":             "Rocket",
	"c4":                 "C4",
	"charcoal":           "Charcoal",
	"MLRS":               "MLRS",
	"MLRS_module":        "MLRS Module",
	"Metal_fragments":    "Metal Fragments",
	"Low_grade_fuel":     "Low Grade Fuel",
}

// Vocabulary is the fixed label → item name table. It is built once at
// startup and never mutated, so it is safe to share between goroutines.
type Vocabulary struct {
	names  map[string]string
	labels []string
	items  []string
}

// NewVocabulary copies categories into a new Vocabulary.
func NewVocabulary(categories map[string]string) (*Vocabulary, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}
	v := &Vocabulary{names: make(map[string]string, len(categories))}
	seen := make(map[string]bool, len(categories))
	for label, item := range categories {
		if label == "" || item == "" {
			return nil, fmt.Errorf("vocabulary entry %q: label and item name are required", label)
		}
		v.names[label] = item
		v.labels = append(v.labels, label)
		if !seen[item] {
			seen[item] = true
			v.items = append(v.items, item)
		}
	}
	sort.Strings(v.labels)
	sort.Strings(v.items)
	return v, nil
}

// DefaultVocabulary returns the built-in item table.
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(defaultCategories)
	if err != nil {
		panic(err)
	}
	return v
}

// LoadVocabulary reads a YAML mapping of label: item name.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	var categories map[string]string
	if err := yaml.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	return NewVocabulary(categories)
}

// Lookup returns the item name for a model class label.
func (v *Vocabulary) Lookup(label string) (string, bool) {
	item, ok := v.names[label]
	return item, ok
}

// Labels returns the tracked class labels, sorted.
func (v *Vocabulary) Labels() []string {
	return append([]string(nil), v.labels...)
}

// Items returns the distinct item names, sorted.
func (v *Vocabulary) Items() []string {
	return append([]string(nil), v.items...)
}

func (v *Vocabulary) Len() int {
	return len(v.names)
}
