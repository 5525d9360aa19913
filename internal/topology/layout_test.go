package topology

import (
	"fmt"
	"math"
	"testing"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(n int) []domain.ConfigurationItem {
	out := make([]domain.ConfigurationItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.ConfigurationItem{ID: fmt.Sprintf("ci-%d", i), Name: fmt.Sprintf("NODE-%d", i), Type: "Server"})
	}
	return out
}

func TestComputePlacesRelatedItemsEvenlyOnCircle(t *testing.T) {
	center := domain.ConfigurationItem{ID: "center", Name: "CORE", Type: "Network"}

	for _, n := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			layout := Compute(center, items(n), nil)
			require.Len(t, layout.Nodes, n+1)

			root := layout.Nodes[0]
			assert.Equal(t, "center", root.ID)
			assert.Equal(t, 0, root.Level)
			assert.Equal(t, CenterX, root.X)
			assert.Equal(t, CenterY, root.Y)

			step := 2 * math.Pi / float64(n)
			for i, node := range layout.Nodes[1:] {
				assert.Equal(t, 1, node.Level)
				dx, dy := node.X-CenterX, node.Y-CenterY
				assert.InDelta(t, Radius, math.Hypot(dx, dy), 1e-9)

				angle := math.Atan2(dy, dx)
				if angle < 0 {
					angle += 2 * math.Pi
				}
				assert.InDelta(t, step*float64(i), angle, 1e-9, "node %d", i)
			}
		})
	}
}

func TestComputeWithoutRelationsYieldsSingleNode(t *testing.T) {
	layout := Compute(domain.ConfigurationItem{ID: "solo"}, nil, nil)
	require.Len(t, layout.Nodes, 1)
	assert.Empty(t, layout.Links)
	assert.Equal(t, CenterX, layout.Nodes[0].X)
}

func TestComputeDedupesAndDropsDanglingLinks(t *testing.T) {
	center := domain.ConfigurationItem{ID: "a"}
	related := []domain.ConfigurationItem{{ID: "b"}, {ID: "b"}, {ID: "a"}, {ID: "c"}}
	rels := []domain.CIRelationship{
		{SourceID: "a", TargetID: "b", RelationshipType: domain.RelationDependsOn},
		{SourceID: "a", TargetID: "c", RelationshipType: domain.RelationHostedOn},
		{SourceID: "a", TargetID: "missing", RelationshipType: domain.RelationConnectsTo},
	}

	layout := Compute(center, related, rels)
	require.Len(t, layout.Nodes, 3)
	assert.Equal(t, []Link{
		{Source: "a", Target: "b", Type: domain.RelationDependsOn},
		{Source: "a", Target: "c", Type: domain.RelationHostedOn},
	}, layout.Links)
}
