package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"mage-defense/internal/control"
)

// maxBodyBytes caps request bodies; every payload here is a few numbers.
const maxBodyBytes = 4 << 10

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.engine.GetSnapshot()
	stats := map[string]interface{}{
		"tick":         snapshot.TickNumber,
		"status":       snapshot.Status,
		"round":        snapshot.Round,
		"roundTicks":   snapshot.RoundTicks,
		"monsterCount": snapshot.MonsterCount,
		"bulletCount":  snapshot.BulletCount,
		"kills":        snapshot.Kills,
		"totalKills":   snapshot.TotalKills,
		"eventLog":     h.engine.GetEventLogStats(),
	}
	if h.commands != nil {
		stats["commands"] = h.commands.Stats()
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetSpawnZone(w http.ResponseWriter, r *http.Request) {
	points, safe := h.engine.SpawnZone()
	writeJSON(w, map[string]interface{}{
		"count":    len(points),
		"safeArea": safe,
		"points":   points,
	})
}

// handleInput accepts {"direction":"up"}, {"dx":1,"dy":2} or {"command":"..."}.
func (h *routerHandlers) handleInput(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	cmd, err := control.Parse(string(body))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch cmd.Kind {
	case control.KindNudge:
		h.engine.Nudge(cmd.Direction)
	case control.KindMove:
		if err := h.engine.Displace(cmd.DX, cmd.DY); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	case control.KindReset:
		h.engine.Reset()
	}

	writeJSON(w, map[string]interface{}{"success": true, "kind": cmd.Kind.String()})
}

func (h *routerHandlers) handleReset(w http.ResponseWriter, r *http.Request) {
	log.Println("🔄 Reset requested via API")
	h.engine.Reset()
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := h.engine.Resize(req.Width, req.Height); err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	points, safe := h.engine.SpawnZone()
	writeJSON(w, map[string]interface{}{
		"success":  true,
		"count":    len(points),
		"safeArea": safe,
	})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

