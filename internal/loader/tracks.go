// Package loader reads track definitions and variant files from disk.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/variant-lollipop-server/pkg/lollipop"
)

// TrackFile is the on-disk description of a plot.
type TrackFile struct {
	Width        float64           `yaml:"width,omitempty"`
	ViewRange    *lollipop.Range   `yaml:"view_range,omitempty"`
	ProteinRange *lollipop.Range   `yaml:"protein_range,omitempty"`
	Tracks       []*lollipop.Track `yaml:"tracks"`
}

// Track returns the named track, or nil.
func (f *TrackFile) Track(name string) *lollipop.Track {
	for _, t := range f.Tracks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// FirstVariantsTrack returns the first track of type variants, or nil.
func (f *TrackFile) FirstVariantsTrack() *lollipop.Track {
	for _, t := range f.Tracks {
		if t.Type == lollipop.TrackVariants {
			return t
		}
	}
	return nil
}

// LoadTracks reads a YAML track file.
func LoadTracks(path string) (*TrackFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track file: %w", err)
	}
	defer f.Close()

	tf, err := ParseTracks(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tf, nil
}

// ParseTracks decodes a YAML track document. Unknown keys are rejected so that
// typos in view blocks surface instead of silently becoming zero values.
func ParseTracks(r io.Reader) (*TrackFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var tf TrackFile
	if err := dec.Decode(&tf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("track file is empty")
		}
		return nil, fmt.Errorf("failed to decode track file: %w", err)
	}
	if len(tf.Tracks) == 0 {
		return nil, errors.New("track file defines no tracks")
	}
	for _, t := range tf.Tracks {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return &tf, nil
}

// WriteTracks encodes a track document as YAML.
func WriteTracks(w io.Writer, tf *TrackFile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tf); err != nil {
		return fmt.Errorf("failed to encode track file: %w", err)
	}
	return enc.Close()
}
