package oralb

import "context"

// Advertisement is one raw BLE frame from a scanner.
type Advertisement struct {
	Address          string
	CompanyID        uint16
	ManufacturerData []byte
}

// AdvertisementSource delivers BLE advertisements. Implementations
// wrap whatever scanner hardware the hub has; Subscribe returns a
// cancel function that stops delivery.
type AdvertisementSource interface {
	// Subscribe registers a callback for advertisements from one
	// address. The callback runs on the source's goroutine and must
	// not block.
	Subscribe(ctx context.Context, address string, fn func(Advertisement)) (func(), error)
}
