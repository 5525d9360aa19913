// Package topology places a configuration item and its direct relations on
// a star-shaped diagram and tracks how that diagram is being viewed.
package topology

import (
	"math"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
)

const (
	CenterX = 300.0
	CenterY = 200.0
	Radius  = 120.0
)

type Node struct {
	ID    string                   `json:"id"`
	CI    domain.ConfigurationItem `json:"ci"`
	X     float64                  `json:"x"`
	Y     float64                  `json:"y"`
	Level int                      `json:"level"`
}

type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type Layout struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Compute puts center at (CenterX, CenterY) and spreads the related items
// evenly on a circle of Radius around it, starting at angle zero.
func Compute(center domain.ConfigurationItem, related []domain.ConfigurationItem, relationships []domain.CIRelationship) Layout {
	others := dedupe(center.ID, related)

	nodes := make([]Node, 0, len(others)+1)
	nodes = append(nodes, Node{ID: center.ID, CI: center, X: CenterX, Y: CenterY, Level: 0})
	for i, item := range others {
		angle := 2 * math.Pi * float64(i) / float64(len(others))
		nodes = append(nodes, Node{
			ID:    item.ID,
			CI:    item,
			X:     CenterX + Radius*math.Cos(angle),
			Y:     CenterY + Radius*math.Sin(angle),
			Level: 1,
		})
	}

	placed := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		placed[n.ID] = struct{}{}
	}

	links := make([]Link, 0, len(relationships))
	for _, rel := range relationships {
		_, okSource := placed[rel.SourceID]
		_, okTarget := placed[rel.TargetID]
		if !okSource || !okTarget {
			continue
		}
		links = append(links, Link{Source: rel.SourceID, Target: rel.TargetID, Type: rel.RelationshipType})
	}

	return Layout{Nodes: nodes, Links: links}
}

func dedupe(centerID string, items []domain.ConfigurationItem) []domain.ConfigurationItem {
	seen := map[string]struct{}{centerID: {}}
	out := make([]domain.ConfigurationItem, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Node returns the laid out node with the given id.
func (l Layout) Node(id string) (Node, bool) {
	for _, n := range l.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
