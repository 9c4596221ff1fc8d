package noise

import (
	"fmt"
	"iter"
	"slices"
)

// Tag names one noise source in a Dictionary.
type Tag string

// Entry pairs a tag with its generator.
type Entry struct {
	Tag       Tag
	Generator Generator
}

// DuplicateTagError reports a tag that appears more than once while a
// dictionary is being built.
type DuplicateTagError struct {
	Tag Tag
}

func (e *DuplicateTagError) Error() string {
	return fmt.Sprintf("duplicate noise tag %q", e.Tag)
}

// Dictionary maps tags to generators. It is immutable once built.
type Dictionary struct {
	generators map[Tag]Generator
	tags       []Tag
}

// NewDictionary builds a dictionary from entries, rejecting empty tags, nil
// generators and duplicate tags.
func NewDictionary(entries ...Entry) (*Dictionary, error) {
	d := &Dictionary{
		generators: make(map[Tag]Generator, len(entries)),
		tags:       make([]Tag, 0, len(entries)),
	}
	for _, e := range entries {
		if e.Tag == "" {
			return nil, fmt.Errorf("noise tag must not be empty")
		}
		if e.Generator == nil {
			return nil, fmt.Errorf("noise tag %q has no generator", e.Tag)
		}
		if _, exists := d.generators[e.Tag]; exists {
			return nil, &DuplicateTagError{Tag: e.Tag}
		}
		d.generators[e.Tag] = e.Generator
		d.tags = append(d.tags, e.Tag)
	}
	slices.Sort(d.tags)
	return d, nil
}

// Resolve returns the generator registered under tag.
func (d *Dictionary) Resolve(tag Tag) (Generator, bool) {
	g, ok := d.generators[tag]
	return g, ok
}

// Len returns the number of entries.
func (d *Dictionary) Len() int { return len(d.tags) }

// Tags returns the tags in sorted order.
func (d *Dictionary) Tags() []Tag {
	return slices.Clone(d.tags)
}

// All iterates over the entries in tag order.
func (d *Dictionary) All() iter.Seq2[Tag, Generator] {
	return func(yield func(Tag, Generator) bool) {
		for _, t := range d.tags {
			if !yield(t, d.generators[t]) {
				return
			}
		}
	}
}
