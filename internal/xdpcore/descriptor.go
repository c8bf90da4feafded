// MIT License
// Copyright (c) 2025 Cezame

package xdpcore

// Descriptor is an (address, length) pair identifying a frame's valid
// packet bytes. Address is a byte offset into the owning UMEM; Length is
// the payload length, excluding headroom, and never exceeds FrameSize.
type Descriptor struct {
	Address uint64
	Length  uint32
}

// AsBytes returns an immutable view of the descriptor's headroom+payload
// region: [Address-headroom, Address+Length) inside umem's mapping.
// AsBytes(d)[headroom:] begins at UMEM offset d.Address, satisfying the
// frame-slice-bounds property any consumer can rely on.
func (d Descriptor) AsBytes(u *Umem) []byte {
	start := d.Address - uint64(u.headroom)
	end := d.Address + uint64(d.Length)
	return u.mmap.Base()[start:end:end]
}

// AsBytesMut returns the mutable counterpart of AsBytes. Mutating through
// it is only safe while no other user-side container (free pool, any ring)
// holds the same address.
func (d Descriptor) AsBytesMut(u *Umem) []byte {
	return d.AsBytes(u)
}
