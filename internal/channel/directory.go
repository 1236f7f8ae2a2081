package channel

import "context"

// Directory answers whether a human-facing channel name maps to a known,
// configured channel and, if so, yields the opaque routing identifier the
// backend source is addressed by. A not-found result is a steady state (no
// overlay shown), never an error.
type Directory interface {
	Lookup(ctx context.Context, name string) (routingID string, found bool, err error)
}

// StaticDirectory maps channel names to routing identifiers from
// configuration.
type StaticDirectory map[string]string

func (d StaticDirectory) Lookup(_ context.Context, name string) (string, bool, error) {
	id, ok := d[name]
	return id, ok, nil
}

// PassthroughDirectory routes every channel by its own key. Used when no
// directory is configured.
type PassthroughDirectory struct{}

func (PassthroughDirectory) Lookup(_ context.Context, name string) (string, bool, error) {
	return name, true, nil
}
