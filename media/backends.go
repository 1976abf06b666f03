package media

import "fmt"

// Backends resolves a Disk discriminant to its Store.
type Backends struct {
	stores  map[Disk]Store
	durable Disk
}

// NewBackends registers the available stores. durable names the disk
// derivatives are placed on and must be registered.
func NewBackends(stores map[Disk]Store, durable Disk) (*Backends, error) {
	if _, ok := stores[durable]; !ok {
		return nil, fmt.Errorf("%w: durable disk %q is not configured", ErrUnknownDisk, durable)
	}
	return &Backends{stores: stores, durable: durable}, nil
}

func (b *Backends) Get(disk Disk) (Store, error) {
	store, ok := b.stores[disk]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDisk, disk)
	}
	return store, nil
}

// Durable returns the disk new derivatives are written to.
func (b *Backends) Durable() Disk {
	return b.durable
}

// URL builds the public URL for a location, or "" if its disk is unknown.
func (b *Backends) URL(loc Location) string {
	store, err := b.Get(loc.Disk)
	if err != nil || loc.Path == "" {
		return ""
	}
	return store.URL(loc.Path)
}
