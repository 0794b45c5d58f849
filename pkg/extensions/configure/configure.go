// Package configure is the layout wizard shown while the user counts LEDs.
// Each edge gets its own colour and the first LED of every edge is white,
// so miscounted edges are easy to spot.
package configure

import (
	"aurora/pkg/extension"
	"aurora/pkg/pixel"
)

const ID = extension.ConfigureID

var edgeColours = map[extension.Edge]pixel.RGB{
	extension.EdgeLeft:   {R: 255},
	extension.EdgeTop:    {G: 255},
	extension.EdgeRight:  {B: 255},
	extension.EdgeBottom: {R: 255, G: 160},
}

var marker = pixel.RGB{R: 255, G: 255, B: 255}

type Wizard struct {
	extension.Base
}

func New(sink pixel.Sink, cfg extension.Config) (extension.Extension, error) {
	w := &Wizard{}
	w.Init(sink, cfg)
	return w, nil
}

func (w *Wizard) Metadata() extension.Metadata {
	return extension.Metadata{
		Name:        "Aurora Configure",
		Author:      "Aurora",
		Description: "Shows the LED layout while the pixel counts are set up",
	}
}

func (w *Wizard) Setup() error {
	return w.Blank()
}

func (w *Wizard) Teardown() error {
	return w.Blank()
}

func (w *Wizard) Visualise() error {
	for i := 0; i < w.Sink.Len(); i++ {
		if err := w.Sink.SetPixel(i, pixel.Black); err != nil {
			return err
		}
	}
	for _, seg := range w.Geometry().Segments() {
		for n := 0; n < seg.Count; n++ {
			c := edgeColours[seg.Edge]
			if n == 0 {
				c = marker
			}
			if err := w.Sink.SetPixel(seg.Start+n, c); err != nil {
				return err
			}
		}
	}
	w.MarkFrame()
	return nil
}
