// Package example is the starting point for new extensions. It is
// registered but never listed.
package example

import (
	"aurora/pkg/extension"
	"aurora/pkg/pixel"
)

const ID = extension.ExampleID

type Example struct {
	extension.Base
}

func New(sink pixel.Sink, cfg extension.Config) (extension.Extension, error) {
	e := &Example{}
	e.Init(sink, cfg)
	return e, nil
}

func (e *Example) Metadata() extension.Metadata {
	return extension.Metadata{
		Name:        "Example",
		Author:      "Aurora",
		Description: "Template for new extensions",
	}
}

func (e *Example) Setup() error {
	e.ResetFrames()
	return nil
}

func (e *Example) Teardown() error {
	return e.Blank()
}

// Visualise lights every LED a dim grey.
func (e *Example) Visualise() error {
	total := e.Geometry().Total()
	for i := 0; i < total; i++ {
		if err := e.Sink.SetPixel(i, pixel.RGB{R: 16, G: 16, B: 16}); err != nil {
			return err
		}
	}
	e.MarkFrame()
	return nil
}
