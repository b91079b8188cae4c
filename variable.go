package nczarr

import (
	"fmt"
	"sort"
	"sync"

	"github.com/scigolib/nczarr/internal/utils"
)

// ShapeProvider resolves a variable name to its shape.
// Implementations return an error wrapping ErrUnknownVariable when the
// name is not known.
type ShapeProvider interface {
	VarShape(name string) (VarShape, error)
}

// ShapeRegistry is an in-memory ShapeProvider. It is safe for concurrent use.
type ShapeRegistry struct {
	mu     sync.RWMutex
	shapes map[string]VarShape
}

// NewShapeRegistry creates an empty registry.
func NewShapeRegistry() *ShapeRegistry {
	return &ShapeRegistry{shapes: make(map[string]VarShape)}
}

// Define registers (or replaces) the shape of a variable after validating it.
func (r *ShapeRegistry) Define(name string, shape VarShape) error {
	if err := shape.Validate(); err != nil {
		return utils.WrapError(fmt.Sprintf("variable %q", name), err)
	}
	shape = VarShape{
		Dimlens:   append([]uint64(nil), shape.Dimlens...),
		Chunklens: append([]uint64(nil), shape.Chunklens...),
		ElemSize:  shape.ElemSize,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.shapes[name] = shape
	return nil
}

// Remove forgets a variable. Removing an unknown name is a no-op.
func (r *ShapeRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shapes, name)
}

// VarShape implements ShapeProvider.
func (r *ShapeRegistry) VarShape(name string) (VarShape, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	shape, ok := r.shapes[name]
	if !ok {
		return VarShape{}, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	return shape, nil
}

// Names returns the registered variable names in sorted order.
func (r *ShapeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.shapes))
	for name := range r.shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PlanVariable looks up name in p and plans the request against its shape.
func PlanVariable(p ShapeProvider, name string, slices []Slice) (*ChunkWalker, error) {
	shape, err := p.VarShape(name)
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("variable %q", name), err)
	}
	w, err := Plan(slices, shape)
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("variable %q", name), err)
	}
	return w, nil
}
