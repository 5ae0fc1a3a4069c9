package confloader

import "errors"

// ErrReadBytesNotSupported is returned when ReadBytes is called on a
// map provider.
var ErrReadBytesNotSupported = errors.New("confloader: ReadBytes not supported by map provider, use Read() instead")

// mapProvider is a koanf provider backed by an in-memory map.
type mapProvider map[string]any

// ReadBytes returns an error; map providers only support Read.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

// Read returns the configuration map.
func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
