// Package solid lights the whole strip in one colour.
package solid

import (
	"fmt"
	"strconv"
	"strings"

	"aurora/pkg/extension"
	"aurora/pkg/pixel"
)

const ID = "solid"

type Solid struct {
	extension.Base
	colour pixel.RGB
}

// New reads the "colour" option as #rrggbb and "brightness" in [0, 1].
func New(sink pixel.Sink, cfg extension.Config) (extension.Extension, error) {
	colour, err := ParseHex(cfg.String("colour", "#ffffff"))
	if err != nil {
		return nil, err
	}
	brightness, err := cfg.Float("brightness", 1)
	if err != nil {
		return nil, err
	}
	if brightness < 0 || brightness > 1 {
		return nil, fmt.Errorf("brightness %v out of range [0, 1]", brightness)
	}

	s := &Solid{colour: scale(colour, brightness)}
	s.Init(sink, cfg)
	return s, nil
}

func (s *Solid) Metadata() extension.Metadata {
	return extension.Metadata{
		Name:        "Solid Colour",
		Author:      "Aurora",
		Description: "A single static colour",
	}
}

func (s *Solid) Setup() error {
	s.ResetFrames()
	return nil
}

func (s *Solid) Teardown() error {
	return s.Blank()
}

func (s *Solid) Visualise() error {
	total := s.Geometry().Total()
	for i := 0; i < total; i++ {
		if err := s.Sink.SetPixel(i, s.colour); err != nil {
			return err
		}
	}
	s.MarkFrame()
	return nil
}

// ParseHex parses #rrggbb or rrggbb.
func ParseHex(hex string) (pixel.RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return pixel.RGB{}, fmt.Errorf("invalid colour %q", hex)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return pixel.RGB{}, fmt.Errorf("invalid colour %q", hex)
	}
	return pixel.RGB{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

func scale(c pixel.RGB, f float64) pixel.RGB {
	return pixel.RGB{
		R: uint8(float64(c.R) * f),
		G: uint8(float64(c.G) * f),
		B: uint8(float64(c.B) * f),
	}
}
