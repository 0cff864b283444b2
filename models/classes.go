package models

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// OutputClass represents one classification label.
type OutputClass struct {
	// The integer index in the model output vector.
	Index int
	// The human-readable label.
	Name string
}

// LabelSet is the ordered list of classes a model was trained on. Position i names the
// i-th value of the model's output vector.
//
// A LabelSet is immutable once built and safe to share between goroutines.
type LabelSet struct {
	// Classes that are supported and mappable, in model output order.
	classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewLabelSet builds a label set from names in model output order.
//
// Arguments:
//   - names: The class names; must be non-empty, unique and non-blank.
//
// Returns:
//   - LabelSet: The label set.
//   - error: An error if the names violate the invariants.
func NewLabelSet(names ...string) (LabelSet, error) {
	if len(names) == 0 {
		return LabelSet{}, errors.New("label set is empty")
	}

	set := LabelSet{
		classes:   make([]OutputClass, len(names)),
		nameToIdx: make(map[string]int, len(names)),
	}
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return LabelSet{}, fmt.Errorf("label %d is blank", i)
		}
		if prev, ok := set.nameToIdx[name]; ok {
			return LabelSet{}, fmt.Errorf("label %q declared twice (indexes %d and %d)", name, prev, i)
		}
		set.classes[i] = OutputClass{Index: i, Name: name}
		set.nameToIdx[name] = i
	}

	return set, nil
}

// MustLabelSet is like NewLabelSet but panics on invalid names.
func MustLabelSet(names ...string) LabelSet {
	set, err := NewLabelSet(names...)
	if err != nil {
		panic(err)
	}
	return set
}

// Len returns the number of classes.
func (s LabelSet) Len() int {
	return len(s.classes)
}

// Name returns the class name at index idx.
func (s LabelSet) Name(idx int) (string, error) {
	if idx < 0 || idx >= len(s.classes) {
		return "", fmt.Errorf("index %d out of range for %d labels", idx, len(s.classes))
	}
	return s.classes[idx].Name, nil
}

// Index returns the index of the class called name.
func (s LabelSet) Index(name string) (int, bool) {
	idx, ok := s.nameToIdx[name]
	return idx, ok
}

// Names returns a copy of the class names in output order.
func (s LabelSet) Names() []string {
	names := make([]string, len(s.classes))
	for i, c := range s.classes {
		names[i] = c.Name
	}
	return names
}

// Classes returns a copy of the classes in output order.
func (s LabelSet) Classes() []OutputClass {
	return append([]OutputClass(nil), s.classes...)
}

// LoadLabelSet reads a label set from disk.
//
// Files ending in .yaml or .yml hold a YAML list of names; anything else is read as one
// name per line, with blank lines and lines starting with '#' skipped.
//
// Arguments:
//   - path: The label file.
//
// Returns:
//   - LabelSet: The label set in file order.
//   - error: An error if the file cannot be read or the names are invalid.
func LoadLabelSet(path string) (LabelSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LabelSet{}, errors.Wrap(err, "failed to read label file")
	}

	var names []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &names); err != nil {
			return LabelSet{}, errors.Wrapf(err, "failed to parse label file %s", path)
		}
	default:
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			names = append(names, line)
		}
		if err := scanner.Err(); err != nil {
			return LabelSet{}, errors.Wrapf(err, "failed to scan label file %s", path)
		}
	}

	set, err := NewLabelSet(names...)
	if err != nil {
		return LabelSet{}, errors.Wrapf(err, "invalid label file %s", path)
	}
	return set, nil
}

// MammalClasses are the 45 mammal categories of the bundled MobileNet classifier, in
// model output order.
var MammalClasses = []string{
	"african_elephant", "alpaca", "american_bison", "anteater", "arctic_fox",
	"armadillo", "baboon", "badger", "blue_whale", "brown_bear", "camel", "dolphin",
	"giraffe", "groundhog", "highland_cattle", "horse", "jackal", "kangaroo", "koala",
	"manatee", "mongoose", "mountain_goat", "opossum", "orangutan", "otter", "polar_bear",
	"porcupine", "red_panda", "rhinoceros", "sea_lion", "seal", "snow_leopard", "squirrel",
	"sugar_glider", "tapir", "vampire_bat", "vicuna", "walrus", "warthog", "water_buffalo",
	"weasel", "wildebeest", "wombat", "yak", "zebra",
}

// Mammals returns the label set of the bundled mammal classifier.
func Mammals() LabelSet {
	return MustLabelSet(MammalClasses...)
}
