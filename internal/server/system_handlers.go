package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/vnnyx/lumina-capital/internal/config"
	"github.com/vnnyx/lumina-capital/internal/database"
)

// SystemHandlers serves health and host-level status endpoints
type SystemHandlers struct {
	ledgerDB  *database.DB
	cfg       *config.Config
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(ledgerDB *database.DB, cfg *config.Config, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		ledgerDB:  ledgerDB,
		cfg:       cfg,
		startedAt: time.Now().UTC(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleHealth reports liveness plus ledger integrity when on SQLite
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	if h.ledgerDB != nil {
		if err := h.ledgerDB.HealthCheck(r.Context()); err != nil {
			h.log.Error().Err(err).Msg("Ledger health check failed")
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	h.writeJSON(w, httpStatus, map[string]interface{}{
		"status":         status,
		"mode":           h.cfg.TradingMode,
		"backend":        h.cfg.StorageBackend,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// HandleSystemStatus reports host resource usage
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	result := map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"started_at": h.startedAt.Format(time.RFC3339),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		result["cpu_percent"] = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		result["memory_percent"] = memStat.UsedPercent
		result["memory_used_mb"] = memStat.Used / 1024 / 1024
	}
	if diskStat, err := disk.Usage(h.cfg.DataDir); err == nil {
		result["disk_percent"] = diskStat.UsedPercent
		result["disk_free_gb"] = float64(diskStat.Free) / 1024 / 1024 / 1024
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
