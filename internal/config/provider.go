package config

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

// errReadBytesNotSupported is returned when ReadBytes is called on a map provider.
var errReadBytesNotSupported = errors.New("config: map provider does not support ReadBytes")

// mapProvider is a koanf provider for flat dotted-key maps
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytesNotSupported
}

// Read expands dotted keys into the nested maps koanf merges
func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
