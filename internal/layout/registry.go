// Package layout tracks widget containers on a board and redraws completed
// widgets when the viewport changes size.
package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/jpalmerr/reportboard/render"
)

// viewportPadding is the horizontal space the page reserves around the board.
const viewportPadding = 32

// ErrInvalidViewport is returned by [Registry.Resize] for non-positive widths.
var ErrInvalidViewport = errors.New("viewport width must be positive")

// Redraw is the outcome of redrawing one completed widget.
type Redraw struct {
	ID        string
	Container render.Container
	HTML      string
	Err       error
}

type entry struct {
	baseWidth int
	height    int
	container render.Container

	renderer render.Renderer
	payload  json.RawMessage
	complete bool
}

// Registry tracks every container on a board. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	viewport int
	entries  map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Track registers a container. width zero means [render.DefaultWidth];
// height zero falls back to minHeight, then [render.DefaultHeight].
func (r *Registry) Track(id string, width, height, minHeight int) render.Container {
	if width <= 0 {
		width = render.DefaultWidth
	}
	if height <= 0 {
		height = minHeight
	}
	if height <= 0 {
		height = render.DefaultHeight
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e := &entry{baseWidth: width, height: height}
	e.container = render.Container{ID: id, Width: r.fit(width), Height: height}
	r.entries[id] = e
	return e.container
}

// Container returns the current container for id.
func (r *Registry) Container(id string) (render.Container, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return render.Container{}, false
	}
	return e.container, true
}

// Remember records the renderer and payload of a completed widget so it can
// be redrawn on resize.
func (r *Registry) Remember(id string, renderer render.Renderer, payload json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.renderer = renderer
		e.payload = payload
		e.complete = true
	}
}

// Forget drops id. Unknown ids are ignored.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of tracked containers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Resize fits containers to a viewport of the given width and redraws every
// completed widget at its new size. Container heights are fixed, so height
// only needs to be non-negative.
func (r *Registry) Resize(width, height int) ([]Redraw, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidViewport, width)
	}
	if height < 0 {
		return nil, fmt.Errorf("viewport height must not be negative: %d", height)
	}

	type job struct {
		id        string
		container render.Container
		renderer  render.Renderer
		payload   json.RawMessage
	}

	r.mu.Lock()
	r.viewport = width
	var jobs []job
	for id, e := range r.entries {
		e.container = render.Container{ID: id, Width: r.fit(e.baseWidth), Height: e.height}
		if e.complete {
			jobs = append(jobs, job{id: id, container: e.container, renderer: e.renderer, payload: e.payload})
		}
	}
	r.mu.Unlock()

	slices.SortFunc(jobs, func(a, b job) int { return strings.Compare(a.id, b.id) })

	redraws := make([]Redraw, 0, len(jobs))
	for _, j := range jobs {
		markup, err := draw(j.renderer, j.container, j.payload)
		redraws = append(redraws, Redraw{ID: j.id, Container: j.container, HTML: markup, Err: err})
	}
	return redraws, nil
}

// fit clamps a container width to the viewport. Caller holds r.mu.
func (r *Registry) fit(width int) int {
	if r.viewport <= 0 {
		return width
	}
	return max(min(width, r.viewport-viewportPadding), 1)
}

func draw(renderer render.Renderer, c render.Container, payload json.RawMessage) (markup string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			markup, err = "", fmt.Errorf("redraw panic: %v", rec)
		}
	}()
	return renderer.Render(c, payload)
}
