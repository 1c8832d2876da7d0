package contact

// Cache is the previous frame's contact state: its manifolds keyed by
// unordered body pair, and a flat copy of the contact identifiers and final
// lambdas, indexed by the cached manifolds' ranges.
type Cache struct {
	manifolds   map[PairKey]Manifold
	Identifiers []Identifier
	Lambdas     []Lambdas
}

func NewCache() Cache {
	return Cache{manifolds: make(map[PairKey]Manifold)}
}

// Find returns the cached manifold of a pair, in either order
func (c *Cache) Find(pair Pair) (Manifold, bool) {
	m, ok := c.manifolds[pair.Key()]
	return m, ok
}

// Lookup searches the cached range of a manifold for a contact identifier
// and returns its accumulated lambdas.
func (c *Cache) Lookup(cached Manifold, id Identifier) (Lambdas, bool) {
	for i := cached.FirstContact; i < cached.End(); i++ {
		if c.Identifiers[i] == id {
			return c.Lambdas[i], true
		}
	}
	return Lambdas{}, false
}

// Rebuild replaces the cache with the current frame of d
func (c *Cache) Rebuild(d *Data) {
	c.Clear()
	for _, m := range d.Manifolds {
		c.manifolds[m.Bodies.Key()] = m
	}
	for _, contact := range d.Contacts {
		c.Identifiers = append(c.Identifiers, contact.ID)
	}
	c.Lambdas = append(c.Lambdas, d.Lambdas...)
}

// Clear empties the cache, every following contact starts cold
func (c *Cache) Clear() {
	if c.manifolds == nil {
		c.manifolds = make(map[PairKey]Manifold)
	}
	clear(c.manifolds)
	c.Identifiers = c.Identifiers[:0]
	c.Lambdas = c.Lambdas[:0]
}

// Len returns the number of cached manifolds
func (c *Cache) Len() int {
	return len(c.manifolds)
}
