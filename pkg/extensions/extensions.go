// Package extensions registers the compiled-in visualisations.
package extensions

import (
	"aurora/pkg/extension"
	"aurora/pkg/extensions/configure"
	"aurora/pkg/extensions/example"
	"aurora/pkg/extensions/mirror"
	"aurora/pkg/extensions/rainbow"
	"aurora/pkg/extensions/solid"
)

var builtin = map[string]extension.Factory{
	rainbow.ID:   rainbow.New,
	solid.ID:     solid.New,
	mirror.ID:    mirror.New,
	configure.ID: configure.New,
	example.ID:   example.New,
}

// IDs lists the built-in source ids, reserved ones included.
func IDs() []string {
	return []string{rainbow.ID, solid.ID, mirror.ID, configure.ID, example.ID}
}

// RegisterAll adds every built-in extension to reg.
func RegisterAll(reg *extension.Registry) error {
	for _, id := range IDs() {
		if err := reg.Register(id, builtin[id]); err != nil {
			return err
		}
	}
	return nil
}
