package topology

import (
	"math"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
)

const (
	MinZoom     = 0.5
	MaxZoom     = 2.0
	ZoomStep    = 0.2
	DefaultZoom = 1.0
)

const (
	ActionZoomIn        = "zoom_in"
	ActionZoomOut       = "zoom_out"
	ActionSelect        = "select"
	ActionToggleDetails = "toggle_details"
)

// Viewport is the per-view state of a rendered topology.
type Viewport struct {
	Zoom        float64 `json:"zoom"`
	Selected    string  `json:"selected"`
	ShowDetails bool    `json:"showDetails"`

	onSelect func(domain.ConfigurationItem)
}

func NewViewport(onSelect func(domain.ConfigurationItem)) *Viewport {
	return &Viewport{Zoom: DefaultZoom, onSelect: onSelect}
}

// OnSelect replaces the selection callback.
func (v *Viewport) OnSelect(fn func(domain.ConfigurationItem)) {
	v.onSelect = fn
}

func (v *Viewport) ZoomIn() {
	v.Zoom = clampZoom(v.Zoom + ZoomStep)
}

func (v *Viewport) ZoomOut() {
	v.Zoom = clampZoom(v.Zoom - ZoomStep)
}

// Normalize brings zoom values coming from a client back into range.
func (v *Viewport) Normalize() {
	if v.Zoom == 0 || math.IsNaN(v.Zoom) {
		v.Zoom = DefaultZoom
	}
	v.Zoom = clampZoom(v.Zoom)
}

// Select marks the node as selected and fires the selection callback.
func (v *Viewport) Select(n Node) {
	v.Selected = n.ID
	if v.onSelect != nil {
		v.onSelect(n.CI)
	}
}

func (v *Viewport) ToggleDetails() {
	v.ShowDetails = !v.ShowDetails
}

// Apply runs a named action. Unknown actions are ignored.
func (v *Viewport) Apply(action, nodeID string, layout Layout) {
	switch action {
	case ActionZoomIn:
		v.ZoomIn()
	case ActionZoomOut:
		v.ZoomOut()
	case ActionSelect:
		if n, ok := layout.Node(nodeID); ok {
			v.Select(n)
		}
	case ActionToggleDetails:
		v.ToggleDetails()
	}
}

// Position returns the on-screen coordinates of n at the current zoom.
func (v *Viewport) Position(n Node) (float64, float64) {
	return n.X * v.Zoom, n.Y * v.Zoom
}

func clampZoom(z float64) float64 {
	z = math.Round(z*10) / 10
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}
