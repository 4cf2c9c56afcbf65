package particle

import (
	"sync"

	"github.com/JulianSchoen/WallGo/collerr"
)

// Catalog owns the particle arena and the model parameter map, following
// the same name-indexed-over-a-backing-slice shape as the teacher's
// catalog.ParticleManager, generalized from particle ids to particle
// names and from a fixed Particle struct to the mutable Species above.
type Catalog struct {
	mu sync.RWMutex

	species []Species
	index   map[string]int

	params     map[string]float64
	paramOrder []string

	// listeners are notified whenever a parameter changes value, so that
	// cached MatrixElement objects can rebind. This is the Go-idiomatic
	// analogue of the original's "hacky friend declaration" used to
	// propagate ModelChangeContext (spec.md DESIGN NOTES).
	listeners []func(name string, value float64)

	busy bool
}

// NewCatalog returns an empty particle/parameter catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		index:  make(map[string]int),
		params: make(map[string]float64),
	}
}

// DefineParticle registers a new species. Returns a *collerr.Error of kind
// DuplicateParticle if the name is already registered.
func (c *Catalog) DefineParticle(s Species) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[s.Name]; ok {
		return collerr.New(collerr.DuplicateParticle, "particle %q already defined", s.Name)
	}
	c.index[s.Name] = len(c.species)
	c.species = append(c.species, s)
	return nil
}

// Get returns a copy of the named species and whether it was found.
func (c *Catalog) Get(name string) (Species, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.index[name]
	if !ok {
		return Species{}, false
	}
	return c.species[idx], true
}

// All returns a copy of every registered species, in definition order.
func (c *Catalog) All() []Species {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Species, len(c.species))
	copy(out, c.species)
	return out
}

// OutOfEquilibrium returns the names of every species with InEquilibrium
// == false, in definition order.
func (c *Catalog) OutOfEquilibrium() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, s := range c.species {
		if !s.InEquilibrium {
			out = append(out, s.Name)
		}
	}
	return out
}

// UpdateMasses writes new vacuum/thermal mass-squared values into the
// arena for the named species. Returns UnregisteredParticle if name is
// unknown. Per spec.md §5, this fails with BusyTensor while a grid
// evaluation holds the catalog (see SetBusy).
func (c *Catalog) UpdateMasses(name string, msqVacuum, msqThermal *float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return collerr.New(collerr.BusyTensor, "cannot update masses of %q while a grid evaluation is in progress", name)
	}
	idx, ok := c.index[name]
	if !ok {
		return collerr.New(collerr.UnregisteredParticle, "particle %q is not registered", name)
	}
	if msqVacuum != nil {
		c.species[idx].MassSquaredVacuum = *msqVacuum
	}
	if msqThermal != nil {
		c.species[idx].MassSquaredThermal = *msqThermal
	}
	return nil
}

// DefineVariable declares a new symbolic model parameter with an initial
// value. Declaring the same name twice just updates its value (spec.md
// does not forbid redeclaration the way it forbids duplicate particles).
func (c *Catalog) DefineVariable(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.params[name]; !ok {
		c.paramOrder = append(c.paramOrder, name)
	}
	c.params[name] = value
}

// SetVariable updates a previously declared parameter and broadcasts the
// change to every registered listener (spec.md "Mutation is broadcast").
// Setting a value equal to the current one is a documented no-op: it still
// notifies listeners (so callers cannot tell from the outside whether the
// value "really" changed), but per spec.md's Parameter idempotence
// property no cached MatrixElement observes a different value as a
// result.
func (c *Catalog) SetVariable(name string, value float64) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return collerr.New(collerr.BusyTensor, "cannot set variable %q while a grid evaluation is in progress", name)
	}
	if _, ok := c.params[name]; !ok {
		c.mu.Unlock()
		return collerr.New(collerr.UnknownSymbol, "variable %q was never declared", name)
	}
	c.params[name] = value
	listeners := append([]func(string, float64){}, c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(name, value)
	}
	return nil
}

// OnParameterChange registers a listener invoked after every successful
// SetVariable call.
func (c *Catalog) OnParameterChange(fn func(name string, value float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// ClearParameterListeners drops every registered rebind listener, so a
// caller that rebuilds bound state from scratch (e.g. re-running
// SetupCollisionIntegrals) doesn't accumulate one stale listener per
// previous build.
func (c *Catalog) ClearParameterListeners() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = nil
}

// Parameters returns a snapshot copy of the current parameter map.
func (c *Catalog) Parameters() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// ParameterNames returns every declared parameter name, in declaration
// order.
func (c *Catalog) ParameterNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.paramOrder))
	copy(out, c.paramOrder)
	return out
}

// KnownParameterSet returns a set usable by matrixelement.ParseFile to
// validate that every symbol referenced in the matrix-element file has
// been declared.
func (c *Catalog) KnownParameterSet() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool, len(c.params))
	for k := range c.params {
		out[k] = true
	}
	return out
}

// SetBusy marks the catalog as exclusively owned by an in-progress grid
// evaluation; mutators fail with BusyTensor until the matching SetBusy(false).
func (c *Catalog) SetBusy(busy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = busy
}
