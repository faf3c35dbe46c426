package server

import (
	"encoding/json"
	"net/http"
)

// Handler 管理与监控接口，外加 WebSocket 接入
func (a *Authority) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.HandleWS)
	mux.HandleFunc("/admin/config", a.HandleAdminConfig)
	mux.HandleFunc("/metrics", a.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// HandleAdminConfig 提供世界规则的读取与更新（热更新）
// GET /admin/config   返回当前规则
// POST /admin/config  以 JSON 载荷更新部分字段，下一 Tick 生效
func (a *Authority) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type cfg struct {
		MinBound        *float32 `json:"min_bound,omitempty"`
		MaxBound        *float32 `json:"max_bound,omitempty"`
		MaxVelocity     *float32 `json:"max_velocity,omitempty"`
		CollisionRadius *float32 `json:"collision_radius,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.Rules())
		return
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		rules := a.Rules()
		if body.MinBound != nil {
			rules.MinBound = *body.MinBound
		}
		if body.MaxBound != nil {
			rules.MaxBound = *body.MaxBound
		}
		if body.MaxVelocity != nil {
			rules.MaxVelocity = *body.MaxVelocity
		}
		if body.CollisionRadius != nil {
			rules.CollisionRadius = *body.CollisionRadius
		}
		if err := a.UpdateRules(rules); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "rules": rules})
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
}

// HandleMetrics 输出权威循环的运行指标
// GET /metrics
func (a *Authority) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"tick":        a.lastTick.Load(),
		"state":       a.Status().String(),
		"connections": a.connGauge.Load(),
		"players":     a.playerGauge.Load(),
		"metrics":     a.metrics.Snapshot(),
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
