package onnx

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/vbonduro/lootbot/internal/detect"
)

// LoadLabels reads the class names of a YOLO export. It accepts the dataset
// YAML layout, where names is either a list or an index → name mapping:
//
//	names:
//	  0: Sulfur_stack
//	  1: gunpowder
func LoadLabels(path string) (detect.ClassNames, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return ParseLabels(data)
}

func ParseLabels(data []byte) (detect.ClassNames, error) {
	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}

	names := make(detect.ClassNames)
	switch doc.Names.Kind {
	case yaml.SequenceNode:
		for i, n := range doc.Names.Content {
			names[i] = n.Value
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(doc.Names.Content); i += 2 {
			key, value := doc.Names.Content[i], doc.Names.Content[i+1]
			id, err := strconv.Atoi(key.Value)
			if err != nil || id < 0 {
				return nil, fmt.Errorf("invalid class id %q in labels", key.Value)
			}
			names[id] = value.Value
		}
	default:
		return nil, fmt.Errorf("labels file has no names list")
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("labels file has no names list")
	}
	return names, nil
}

// numClasses is the width of the class axis in the model output.
func numClasses(names detect.ClassNames) int {
	n := 0
	for id := range names {
		if id+1 > n {
			n = id + 1
		}
	}
	return n
}
