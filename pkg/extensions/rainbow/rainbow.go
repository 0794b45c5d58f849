// Package rainbow cycles a hue wheel around the strip.
package rainbow

import (
	"fmt"
	"math"

	"aurora/pkg/extension"
	"aurora/pkg/pixel"
)

const ID = "rainbow"

type Rainbow struct {
	extension.Base
	speed  float64
	offset float64
}

// New reads the "speed" option, in hue degrees per frame.
func New(sink pixel.Sink, cfg extension.Config) (extension.Extension, error) {
	speed, err := cfg.Float("speed", 2)
	if err != nil {
		return nil, err
	}
	if speed < 0 || speed > 360 {
		return nil, fmt.Errorf("speed %v out of range [0, 360]", speed)
	}
	r := &Rainbow{speed: speed}
	r.Init(sink, cfg)
	return r, nil
}

func (r *Rainbow) Metadata() extension.Metadata {
	return extension.Metadata{
		Name:        "Rainbow",
		Author:      "Aurora",
		Description: "Slowly rotating colour wheel around the screen",
	}
}

func (r *Rainbow) Setup() error {
	r.offset = 0
	r.ResetFrames()
	return nil
}

func (r *Rainbow) Teardown() error {
	return r.Blank()
}

func (r *Rainbow) Visualise() error {
	total := r.Geometry().Total()
	for i := 0; i < total; i++ {
		hue := math.Mod(r.offset+float64(i)*360/float64(total), 360)
		if err := r.Sink.SetPixel(i, HSV(hue, 1, 1)); err != nil {
			return err
		}
	}
	r.offset = math.Mod(r.offset+r.speed, 360)
	r.MarkFrame()
	return nil
}

// HSV converts hue in degrees and saturation/value in [0, 1] to RGB.
func HSV(h, s, v float64) pixel.RGB {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return pixel.RGB{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
	}
}
