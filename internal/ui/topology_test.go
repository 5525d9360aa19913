package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/atvirokodosprendimai/cmdb/internal/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func sampleLayout() (domain.ConfigurationItem, topology.Layout) {
	center := domain.ConfigurationItem{ID: "app", Name: "APP-01", Type: "VM", Status: domain.CIStatusActive}
	related := []domain.ConfigurationItem{
		{ID: "db", Name: "DB-01", Type: "Database", Status: domain.CIStatusMaintenance, Hostname: "db01.local", IPAddress: "10.0.0.5"},
		{ID: "sw", Name: "<SW-01>", Type: "Network", Status: domain.CIStatusActive},
	}
	rels := []domain.CIRelationship{
		{SourceID: "app", TargetID: "db", RelationshipType: domain.RelationDependsOn},
		{SourceID: "app", TargetID: "sw", RelationshipType: domain.RelationConnectsTo},
	}
	return center, topology.Compute(center, related, rels)
}

func TestCanvasDrawsLinksAndNodes(t *testing.T) {
	center, layout := sampleLayout()
	out := render(t, TopologyCanvas(center.ID, layout, topology.NewViewport(nil)))

	assert.Equal(t, 2, strings.Count(out, `class="topology-link"`))
	assert.Equal(t, 1, strings.Count(out, `stroke-dasharray="5,5"`), "only depends_on is dashed")
	assert.Contains(t, out, ">depends on<")
	assert.Contains(t, out, ">connects to<")
	assert.Equal(t, 3, strings.Count(out, `class="topology-node"`))
	assert.Contains(t, out, `href="#icon-database"`)
	assert.Contains(t, out, `href="#icon-vm"`)
	assert.Equal(t, 1, strings.Count(out, `class="status-warning"`))
	assert.Contains(t, out, "&lt;SW-01&gt;")
	assert.NotContains(t, out, "<SW-01>")
	assert.Contains(t, out, `cx="300.00" cy="200.00"`)
}

func TestCanvasScalesWithZoom(t *testing.T) {
	center, layout := sampleLayout()
	vp := topology.NewViewport(nil)
	vp.ZoomOut()
	vp.ZoomOut()

	out := render(t, TopologyCanvas(center.ID, layout, vp))
	assert.Contains(t, out, `width="360.00" height="240.00"`)
	assert.Contains(t, out, `cx="180.00" cy="120.00"`)
}

func TestDetailsRequireToggleAndSelection(t *testing.T) {
	_, layout := sampleLayout()
	vp := topology.NewViewport(nil)

	assert.Equal(t, `<aside id="topology-details"></aside>`, render(t, NodeDetails(layout, vp)))

	vp.ToggleDetails()
	assert.Contains(t, render(t, NodeDetails(layout, vp)), "Select a node")

	vp.Apply(topology.ActionSelect, "db", layout)
	out := render(t, NodeDetails(layout, vp))
	for _, want := range []string{"DB-01", "Database", "Maintenance", "Hostname", "db01.local", "10.0.0.5"} {
		assert.Contains(t, out, want)
	}

	vp.Apply(topology.ActionSelect, "app", layout)
	out = render(t, NodeDetails(layout, vp))
	assert.NotContains(t, out, "Hostname")
	assert.NotContains(t, out, "<dt>IP</dt>")
}

func TestPageCarriesSignals(t *testing.T) {
	center, layout := sampleLayout()
	out := render(t, TopologyPage(center, layout, topology.NewViewport(nil)))
	assert.Contains(t, out, `data-signals="{&#34;zoom&#34;:1,`)
	assert.Contains(t, out, `/topology/app/view`)
	assert.Contains(t, out, `id="flash"`)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "hosted on", LinkLabel("hosted_on"))
	assert.Equal(t, "a b_c", LinkLabel("a_b_c"))
	assert.Equal(t, "server", Icon("Storage"))
	assert.Equal(t, "server", Icon("Server"))
	assert.Equal(t, "#ef4444", StatusColor(domain.CIStatusDecommissioned))
	assert.Equal(t, "#eab308", StatusColor(domain.CIStatusMaintenance))
}

func TestFlashEscapesMessage(t *testing.T) {
	assert.Equal(t, `<div id="flash"></div>`, render(t, Flash("", "info")))

	out := render(t, Flash(`<b>"down"</b>`, "error"))
	assert.Contains(t, out, `data-kind="error"`)
	assert.Contains(t, out, "&lt;b&gt;&#34;down&#34;&lt;/b&gt;")
}

func TestNodeClickPostsSelection(t *testing.T) {
	center, layout := sampleLayout()
	out := render(t, TopologyCanvas(center.ID, layout, topology.NewViewport(nil)))
	assert.Contains(t, out, `data-on:click="$selected=&#39;db&#39;; $action=&#39;select&#39;; @post(&#39;/topology/app/view&#39;)"`)
	assert.Contains(t, out, `data-level="1"`)
}
