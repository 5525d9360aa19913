package topology

import (
	"testing"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoomStaysWithinBounds(t *testing.T) {
	v := NewViewport(nil)
	for i := 0; i < 20; i++ {
		v.ZoomIn()
		assert.LessOrEqual(t, v.Zoom, MaxZoom)
	}
	assert.Equal(t, MaxZoom, v.Zoom)

	for i := 0; i < 20; i++ {
		v.ZoomOut()
		assert.GreaterOrEqual(t, v.Zoom, MinZoom)
	}
	assert.Equal(t, MinZoom, v.Zoom)
}

func TestZoomStepsByTwoTenths(t *testing.T) {
	v := NewViewport(nil)
	v.ZoomIn()
	v.ZoomIn()
	assert.Equal(t, 1.4, v.Zoom)
	v.ZoomOut()
	assert.Equal(t, 1.2, v.Zoom)
}

func TestNormalizeClampsClientZoom(t *testing.T) {
	v := &Viewport{Zoom: 7}
	v.Normalize()
	assert.Equal(t, MaxZoom, v.Zoom)

	v = &Viewport{}
	v.Normalize()
	assert.Equal(t, DefaultZoom, v.Zoom)
}

func TestApplySelectFiresCallback(t *testing.T) {
	center := domain.ConfigurationItem{ID: "a", Name: "APP-01"}
	layout := Compute(center, []domain.ConfigurationItem{{ID: "b", Name: "DB-01"}}, nil)

	var picked []string
	v := NewViewport(func(ci domain.ConfigurationItem) { picked = append(picked, ci.Name) })

	v.Apply(ActionSelect, "b", layout)
	v.Apply(ActionSelect, "nope", layout)
	v.Apply(ActionToggleDetails, "", layout)

	require.Equal(t, []string{"DB-01"}, picked)
	assert.Equal(t, "b", v.Selected)
	assert.True(t, v.ShowDetails)

	x, y := v.Position(layout.Nodes[0])
	assert.Equal(t, CenterX, x)
	assert.Equal(t, CenterY, y)
}
