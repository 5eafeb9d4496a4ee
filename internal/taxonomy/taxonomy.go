// Package taxonomy loads the class-taxonomy table that maps raw sensor
// labels onto the compact learned label set, together with the classes
// ignored during training.
package taxonomy

import (
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// file is the YAML layout of a taxonomy file:
//
//	labels:            raw id -> human-readable name
//	learning_map:      raw id -> learned id
//	learning_map_inv:  learned id -> representative raw id
//	ignored:           learned ids excluded from training
type file struct {
	Labels         map[int32]string `yaml:"labels"`
	LearningMap    map[int32]int32  `yaml:"learning_map"`
	LearningMapInv map[int32]int32  `yaml:"learning_map_inv"`
	Ignored        []int32          `yaml:"ignored"`
}

// Taxonomy is the immutable label metadata for one dataset.
type Taxonomy struct {
	remap       []int32 // dense raw -> learned table
	labelValues []int32 // sorted learned ids
	names       map[int32]string
	ignored     map[int32]bool
}

// Load reads and parses a taxonomy YAML file.
func Load(path string) (*Taxonomy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open taxonomy file: %w", err)
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("taxonomy file %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a taxonomy from YAML.
func Parse(r io.Reader) (*Taxonomy, error) {
	var doc file
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode taxonomy yaml: %w", err)
	}
	if len(doc.LearningMap) == 0 {
		return nil, fmt.Errorf("taxonomy has an empty learning_map")
	}

	names := make(map[int32]string, len(doc.LearningMapInv))
	for learned, raw := range doc.LearningMapInv {
		names[learned] = doc.Labels[raw]
	}
	return New(doc.LearningMap, names, doc.Ignored)
}

// New builds a taxonomy from explicit tables. names may be nil.
func New(learningMap map[int32]int32, names map[int32]string, ignored []int32) (*Taxonomy, error) {
	var maxRaw int32
	for raw := range learningMap {
		if raw < 0 {
			return nil, fmt.Errorf("negative raw label %d in learning_map", raw)
		}
		if raw > maxRaw {
			maxRaw = raw
		}
	}

	t := &Taxonomy{
		remap:   make([]int32, maxRaw+1),
		names:   names,
		ignored: make(map[int32]bool, len(ignored)),
	}
	learnedSet := make(map[int32]bool, len(learningMap))
	for raw, learned := range learningMap {
		t.remap[raw] = learned
		learnedSet[learned] = true
	}
	for learned := range learnedSet {
		t.labelValues = append(t.labelValues, learned)
	}
	slices.Sort(t.labelValues)
	for _, id := range ignored {
		if !learnedSet[id] {
			return nil, fmt.Errorf("ignored label %d is not produced by the learning_map", id)
		}
		t.ignored[id] = true
	}
	return t, nil
}

// Remap translates raw labels through the learning map in place-compatible
// fashion, returning a new slice. Unknown raw ids map to label 0.
func (t *Taxonomy) Remap(raw []int32) []int32 {
	out := make([]int32, len(raw))
	for i, r := range raw {
		if r >= 0 && int(r) < len(t.remap) {
			out[i] = t.remap[r]
		}
	}
	return out
}

// LabelValues returns the sorted learned label ids, ignored classes included.
func (t *Taxonomy) LabelValues() []int32 {
	return slices.Clone(t.labelValues)
}

// UsedLabelValues returns the sorted learned label ids that are not ignored.
func (t *Taxonomy) UsedLabelValues() []int32 {
	out := make([]int32, 0, len(t.labelValues))
	for _, v := range t.labelValues {
		if !t.ignored[v] {
			out = append(out, v)
		}
	}
	return out
}

// IsIgnored reports whether a learned label is excluded from training.
func (t *Taxonomy) IsIgnored(label int32) bool { return t.ignored[label] }

// Name returns the human-readable name of a learned label, or "" if unknown.
func (t *Taxonomy) Name(label int32) string { return t.names[label] }
