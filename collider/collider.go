// Package collider owns the convex hull assets shared by bodies.
//
// Hulls are built once per asset and handed out as generation-checked
// handles. The store counts references explicitly; a hull is destroyed when
// its last reference is released and its slot is recycled with a new
// generation, so stale handles stop resolving.
package collider

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/akmonengine/anvil/halfedge"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrInvalidHandle = errors.New("collider: invalid handle")
	ErrNotSolid      = errors.New("collider: hull is not a closed solid")
)

// Handle references a hull in a Store. The zero Handle is invalid.
type Handle struct {
	index      uint32
	generation uint32
}

// ID packs the handle into a single integer, 0 meaning no collider
func (h Handle) ID() uint64 {
	if h.generation == 0 {
		return 0
	}
	return uint64(h.generation)<<32 | uint64(h.index)
}

func (h Handle) IsValid() bool {
	return h.generation != 0
}

func (h Handle) String() string {
	if !h.IsValid() {
		return "collider(none)"
	}
	return fmt.Sprintf("collider(%d@%d)", h.index, h.generation)
}

type slot struct {
	name       string
	hull       *halfedge.Mesh
	refs       int
	generation uint32
}

// Store is the hull asset store
type Store struct {
	Logger *slog.Logger

	slots []slot
	free  []uint32
	names map[string]Handle
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		Logger: logger,
		names:  make(map[string]Handle),
	}
}

// Load returns a referenced handle to the hull named name, building it from
// the triangle soup when the asset is not loaded yet. The soup must close
// into a solid of at least four faces.
func (s *Store) Load(name string, vertices []mgl64.Vec3, triangles [][3]int) (Handle, error) {
	if h, ok := s.names[name]; ok {
		return h, s.Acquire(h)
	}

	hull, err := halfedge.Build(vertices, triangles)
	if err != nil {
		return Handle{}, fmt.Errorf("collider %q: %w", name, err)
	}
	if !hull.IsClosed() || len(hull.Faces) < 4 {
		return Handle{}, fmt.Errorf("%w: %q has %d faces, closed %v", ErrNotSolid, name, len(hull.Faces), hull.IsClosed())
	}

	return s.Insert(name, hull), nil
}

// Insert stores an already built hull with one reference. The hull is not
// checked, the caller vouches that it is a closed solid. An empty name
// keeps the hull out of the name lookup.
func (s *Store) Insert(name string, hull *halfedge.Mesh) Handle {
	var index uint32
	if n := len(s.free); n > 0 {
		index = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		index = uint32(len(s.slots))
		s.slots = append(s.slots, slot{})
	}

	sl := &s.slots[index]
	sl.generation++
	if sl.generation == 0 {
		sl.generation = 1
	}
	sl.name = name
	sl.hull = hull
	sl.refs = 1

	h := Handle{index: index, generation: sl.generation}
	if name != "" {
		s.names[name] = h
	}

	s.Logger.Debug("collider loaded",
		slog.String("name", name),
		slog.String("handle", h.String()),
		slog.Int("vertices", len(hull.Vertices)),
		slog.Int("faces", len(hull.Faces)))

	return h
}

// Lookup returns the handle of a loaded asset without taking a reference
func (s *Store) Lookup(name string) (Handle, bool) {
	h, ok := s.names[name]
	return h, ok
}

func (s *Store) slot(h Handle) (*slot, error) {
	if !h.IsValid() || int(h.index) >= len(s.slots) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	sl := &s.slots[h.index]
	if sl.generation != h.generation || sl.hull == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return sl, nil
}

// Acquire adds a reference to the hull
func (s *Store) Acquire(h Handle) error {
	sl, err := s.slot(h)
	if err != nil {
		return err
	}
	sl.refs++
	return nil
}

// Release drops a reference and destroys the hull once none remain.
// Releasing an unknown handle is logged and otherwise ignored.
func (s *Store) Release(h Handle) {
	sl, err := s.slot(h)
	if err != nil {
		s.Logger.Warn("release of unknown collider", slog.String("handle", h.String()))
		return
	}

	sl.refs--
	if sl.refs > 0 {
		return
	}

	s.Logger.Debug("collider destroyed", slog.String("name", sl.name), slog.String("handle", h.String()))
	if sl.name != "" {
		delete(s.names, sl.name)
	}
	sl.name = ""
	sl.hull = nil
	s.free = append(s.free, h.index)
}

// Hull resolves a handle, returning nil for invalid or stale handles
func (s *Store) Hull(h Handle) *halfedge.Mesh {
	sl, err := s.slot(h)
	if err != nil {
		return nil
	}
	return sl.hull
}

// RefCount returns the number of live references, 0 for stale handles
func (s *Store) RefCount(h Handle) int {
	sl, err := s.slot(h)
	if err != nil {
		return 0
	}
	return sl.refs
}

// Len returns the number of live hulls
func (s *Store) Len() int {
	return len(s.slots) - len(s.free)
}
