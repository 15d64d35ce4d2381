// Package loader registers the executable images tasks are built
// from. Parsing on-disk formats is an external collaborator's job;
// images arrive here already validated, as entry point plus segments.
package loader

import (
	"errors"
	"sync"

	"kernos/pkg/mm"
)

// Registry errors.
var (
	ErrImageExists = errors.New("image name already registered")
)

// Segment is one loadable piece of an image: where it maps, with what
// permission, and its initial bytes.
type Segment struct {
	// Start is the virtual address the segment maps at.
	Start mm.VirtAddr
	// Perm is the segment's permission set (U is added at map time).
	Perm mm.MapPermission
	// Data is the segment's initial contents.
	Data []byte
}

// Image is a validated executable image.
type Image struct {
	// Name is the image's registered name.
	Name string
	// Entry is the user program counter the task starts at.
	Entry uint64
	// Segments are the image's loadable segments.
	Segments []Segment
}

// MaxEndVA returns the highest virtual address any segment reaches.
func (img *Image) MaxEndVA() mm.VirtAddr {
	var max mm.VirtAddr
	for _, seg := range img.Segments {
		if end := seg.Start + mm.VirtAddr(len(seg.Data)); end > max {
			max = end
		}
	}
	return max
}

// Registry holds the registered images, preserving registration order
// for by-index access.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Image
	order  []string
}

// NewRegistry creates an empty image registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Image)}
}

// Register adds an image under its name.
func (r *Registry) Register(img *Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[img.Name]; ok {
		return ErrImageExists
	}
	r.byName[img.Name] = img
	r.order = append(r.order, img.Name)
	return nil
}

// Lookup returns the image registered under name.
func (r *Registry) Lookup(name string) (*Image, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	img, ok := r.byName[name]
	return img, ok
}

// ByIndex returns the i'th registered image. The index must be valid.
func (r *Registry) ByIndex(i int) *Image {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[r.order[i]]
}

// Count returns the number of registered images.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
