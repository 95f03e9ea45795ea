// Package memaccess defines MemoryAccess, the value object that flows
// between cores, the interconnect, and the memory subsystem
// (spec.md §3, "MemoryAccess").
package memaccess

import "github.com/rs/xid"

// Direction tags whether an Access is still outbound from a core or has
// been turned into a response by the memory subsystem. It flips exactly
// once, per spec.md §3's lifecycle invariant.
type Direction int

const (
	// Request is the direction of an access created by a core.
	Request Direction = iota
	// Response is the direction of an access once the memory subsystem
	// has serviced it.
	Response
)

// Access is one memory request or response in flight between a core, the
// interconnect, and the memory subsystem.
type Access struct {
	id        string
	direction Direction

	Write   bool
	Address uint64
	Size    uint32

	// CoreID is immutable after creation: it is how a response finds its
	// way back to the core that issued the originating request.
	CoreID int

	// TileIndex/LayerID associate the access with the tile/layer that
	// generated it, for statistics; optional (-1 / 0 when not set).
	TileIndex int
	LayerID   uint32
}

// Builder constructs an Access with the teacher's fluent With*().Build()
// convention (mem/mem/protocol.go's ReadReqBuilder/WriteReqBuilder).
type Builder struct {
	write     bool
	address   uint64
	size      uint32
	coreID    int
	tileIndex int
	layerID   uint32
}

// NewRequest starts building a request-direction access.
func NewRequest() Builder {
	return Builder{tileIndex: -1}
}

// WithWrite marks the access as a write (false means read).
func (b Builder) WithWrite(write bool) Builder {
	b.write = write
	return b
}

// WithAddress sets the byte address being accessed.
func (b Builder) WithAddress(addr uint64) Builder {
	b.address = addr
	return b
}

// WithSize sets the byte size of the access.
func (b Builder) WithSize(size uint32) Builder {
	b.size = size
	return b
}

// WithCoreID sets the originating core id.
func (b Builder) WithCoreID(coreID int) Builder {
	b.coreID = coreID
	return b
}

// WithTile sets the originating tile index and layer id.
func (b Builder) WithTile(tileIndex int, layerID uint32) Builder {
	b.tileIndex = tileIndex
	b.layerID = layerID
	return b
}

// Build produces the Access, with a fresh, immutable id.
func (b Builder) Build() *Access {
	return &Access{
		id:        xid.New().String(),
		direction: Request,
		Write:     b.write,
		Address:   b.address,
		Size:      b.size,
		CoreID:    b.coreID,
		TileIndex: b.tileIndex,
		LayerID:   b.layerID,
	}
}

// ID returns the access's immutable id.
func (a *Access) ID() string {
	return a.id
}

// Direction returns whether this is still a request or has become a
// response.
func (a *Access) Direction() Direction {
	return a.direction
}

// IsRequest reports whether the access is still outbound.
func (a *Access) IsRequest() bool {
	return a.direction == Request
}

// MarkResponse flips the access's direction to Response. This may only
// be called once; a second call is a programming error, since the memory
// subsystem must never hand out the same access twice.
func (a *Access) MarkResponse() {
	if a.direction == Response {
		panic("memaccess: access already marked as response")
	}

	a.direction = Response
}
