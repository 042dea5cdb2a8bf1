package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"seaguard/internal/buildinfo"
)

// DebugHandler handles GET /debugz: build info, engine counters and a
// config echo. Secrets never appear; booleans say whether they are set.
func (s *Server) DebugHandler(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(s.getPrincipal(r)) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin only", r.URL.Path)
		return
	}
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"engine": map[string]any{
			"zonesLoaded":     s.Engine.Snapshot().Len(),
			"vehiclesTracked": len(s.Engine.Vehicles()),
		},
		"config": map[string]any{
			"ADDR":             s.Cfg.Addr,
			"AUTH_MODE":        os.Getenv("AUTH_MODE"),
			"WARNING_RATIO":    s.Cfg.WarningRatio,
			"SWEEP_INTERVAL":   s.Cfg.SweepInterval.Std().String(),
			"RETENTION_DAYS":   s.Cfg.RetentionDays,
			"RATE_RPS":         s.Cfg.RateRPS,
			"RATE_BURST":       s.Cfg.RateBurst,
			"GIS_SOURCES":      len(s.Cfg.GISSources),
			"KAFKA_BROKERS":    len(s.Cfg.KafkaBrokers),
			"HAS_DATABASE_URL": s.Cfg.DatabaseURL != "",
			"HAS_REDIS_URL":    s.Cfg.RedisURL != "",
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(info)
}
