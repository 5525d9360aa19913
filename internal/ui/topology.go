// Package ui renders the topology view as templ components. The output is
// plain HTML and SVG driven by datastar signals.
package ui

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.906 generate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/atvirokodosprendimai/cmdb/internal/topology"
)

const (
	canvasWidth  = 600.0
	canvasHeight = 400.0
	nodeRadius   = 26.0
)

const (
	CanvasID  = "topology-canvas"
	DetailsID = "topology-details"
	FlashID   = "flash"
)

// Signals is the state exchanged with the browser on every view request.
type Signals struct {
	Zoom        float64 `json:"zoom"`
	Selected    string  `json:"selected"`
	ShowDetails bool    `json:"showDetails"`
	Action      string  `json:"action"`
}

type linkView struct {
	X1, Y1, X2, Y2 string
	LabelX, LabelY string
	Label          string
	Dashed         bool
}

type nodeView struct {
	ID, Level, Click string
	X, Y, R          string
	Stroke           string
	NameY, Name      string
	BadgeX, BadgeY   string
	StatusColor      string
	Status           string
	Warning          bool
	WarnX            string
	Icon             string
	IconX, IconY     string
	IconSize         string
}

type detailRow struct {
	Label string
	Value string
}

func signalsJSON(vp *topology.Viewport) string {
	b, err := json.Marshal(Signals{Zoom: vp.Zoom, Selected: vp.Selected, ShowDetails: vp.ShowDetails})
	if err != nil {
		return "{}"
	}
	return string(b)
}

func viewURL(centerID string) string {
	return "/topology/" + centerID + "/view"
}

func viewAction(centerID, action string) string {
	return fmt.Sprintf("$action='%s'; @post('%s')", action, viewURL(centerID))
}

func viewBox(vp *topology.Viewport) string {
	return "0 0 " + num(canvasWidth*vp.Zoom) + " " + num(canvasHeight*vp.Zoom)
}

func positions(layout topology.Layout, vp *topology.Viewport) map[string][2]float64 {
	out := make(map[string][2]float64, len(layout.Nodes))
	for _, n := range layout.Nodes {
		x, y := vp.Position(n)
		out[n.ID] = [2]float64{x, y}
	}
	return out
}

func linkViews(layout topology.Layout, vp *topology.Viewport) []linkView {
	pos := positions(layout, vp)
	views := make([]linkView, 0, len(layout.Links))
	for _, link := range layout.Links {
		from, to := pos[link.Source], pos[link.Target]
		views = append(views, linkView{
			X1:     num(from[0]),
			Y1:     num(from[1]),
			X2:     num(to[0]),
			Y2:     num(to[1]),
			LabelX: num((from[0] + to[0]) / 2),
			LabelY: num((from[1]+to[1])/2 - 10),
			Label:  LinkLabel(link.Type),
			Dashed: link.Type == domain.RelationDependsOn,
		})
	}
	return views
}

func nodeViews(centerID string, layout topology.Layout, vp *topology.Viewport) []nodeView {
	pos := positions(layout, vp)
	r := nodeRadius * vp.Zoom
	views := make([]nodeView, 0, len(layout.Nodes))
	for _, n := range layout.Nodes {
		x, y := pos[n.ID][0], pos[n.ID][1]
		stroke := "#1e293b"
		if n.ID == vp.Selected {
			stroke = "#2563eb"
		}
		views = append(views, nodeView{
			ID:          n.ID,
			Level:       strconv.Itoa(n.Level),
			Click:       fmt.Sprintf("$selected='%s'; $action='%s'; @post('%s')", n.ID, topology.ActionSelect, viewURL(centerID)),
			X:           num(x),
			Y:           num(y),
			R:           num(r),
			Stroke:      stroke,
			NameY:       num(y + r + 14),
			Name:        n.CI.Name,
			BadgeX:      num(x + r*0.7),
			BadgeY:      num(y - r*0.7),
			StatusColor: StatusColor(n.CI.Status),
			Status:      n.CI.Status,
			Warning:     n.CI.Status != domain.CIStatusActive,
			WarnX:       num(x - r),
			Icon:        Icon(n.CI.Type),
			IconX:       num(x - r/2),
			IconY:       num(y - r/2),
			IconSize:    num(r),
		})
	}
	return views
}

func detailRows(ci domain.ConfigurationItem) []detailRow {
	rows := []detailRow{
		{"Type", ci.Type},
		{"Status", ci.Status},
		{"Location", ci.Location},
		{"Environment", ci.Environment},
	}
	if ci.Hostname != "" {
		rows = append(rows, detailRow{"Hostname", ci.Hostname})
	}
	if ci.IPAddress != "" {
		rows = append(rows, detailRow{"IP", ci.IPAddress})
	}
	return rows
}

// LinkLabel turns a relationship type into display text. Only the first
// underscore is replaced.
func LinkLabel(relationshipType string) string {
	return strings.Replace(relationshipType, "_", " ", 1)
}

func Icon(ciType string) string {
	switch strings.ToLower(strings.TrimSpace(ciType)) {
	case "vm":
		return "vm"
	case "database":
		return "database"
	case "network":
		return "network"
	default:
		return "server"
	}
}

func StatusColor(status string) string {
	switch status {
	case domain.CIStatusActive:
		return "#22c55e"
	case domain.CIStatusMaintenance:
		return "#eab308"
	case domain.CIStatusInactive, domain.CIStatusDecommissioned:
		return "#ef4444"
	default:
		return "#6b7280"
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
