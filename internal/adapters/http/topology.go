package http

import (
	"errors"
	"net/http"

	"github.com/a-h/templ"
	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/atvirokodosprendimai/cmdb/internal/topology"
	"github.com/atvirokodosprendimai/cmdb/internal/ui"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/starfederation/datastar-go/datastar"
)

func (h *Handler) handleTopologyPage(w http.ResponseWriter, r *http.Request) {
	layout, err := h.service.Topology(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Configuration item not found", http.StatusNotFound)
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("topology page")
		http.Error(w, "Failed to build topology", http.StatusInternalServerError)
		return
	}

	vp := topology.NewViewport(nil)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ui.TopologyPage(layout.Nodes[0].CI, layout, vp).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleTopologyView applies one viewer action and answers with the
// redrawn canvas and details panel. The canvas carries the new signal
// values so the browser picks them up on morph.
func (h *Handler) handleTopologyView(w http.ResponseWriter, r *http.Request) {
	var sig ui.Signals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		renderFragments(w, r, http.StatusBadRequest, ui.Flash("invalid signals", "error"))
		return
	}

	layout, err := h.service.Topology(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status, msg := http.StatusInternalServerError, "Failed to build topology"
		if errors.Is(err, domain.ErrNotFound) {
			status, msg = http.StatusNotFound, "Configuration item not found"
		} else {
			hlog.FromRequest(r).Error().Err(err).Msg("topology view")
		}
		renderFragments(w, r, status, ui.Flash(msg, "error"))
		return
	}

	vp := &topology.Viewport{Zoom: sig.Zoom, Selected: sig.Selected, ShowDetails: sig.ShowDetails}
	vp.Normalize()
	vp.OnSelect(func(ci domain.ConfigurationItem) {
		hlog.FromRequest(r).Debug().Str("ci_id", ci.ID).Str("ci_name", ci.Name).Msg("topology node selected")
	})
	vp.Apply(sig.Action, sig.Selected, layout)

	renderFragments(w, r, http.StatusOK,
		ui.TopologyCanvas(layout.Nodes[0].ID, layout, vp),
		ui.NodeDetails(layout, vp),
		ui.Flash("", ""),
	)
}

func renderFragments(w http.ResponseWriter, r *http.Request, status int, fragments ...templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	for _, fragment := range fragments {
		if fragment == nil {
			continue
		}
		_ = fragment.Render(r.Context(), w)
	}
}
