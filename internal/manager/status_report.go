package manager

import (
	"time"

	"promptd/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	models := m.ListModels()
	info := m.runner.Info()

	m.mu.Lock()
	defer m.mu.Unlock()
	resp := types.StatusResponse{
		Selected:       m.selected,
		Active:         m.active,
		Strategy:       string(m.strategy),
		Models:         models,
		Inflight:       m.inflight,
		UptimeSeconds:  int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
		EvictionsTotal: m.evictionsTotal,
		DownloadsTotal: m.downloadsTotal,
	}
	if m.idleTimeout > 0 {
		resp.IdleTimeoutSeconds = int(m.idleTimeout / time.Second)
	}
	if info.Running {
		resp.Server = &types.ServerStatus{
			Running:     true,
			Ready:       info.Ready,
			Port:        info.Port,
			PID:         info.PID,
			ModelPath:   info.Config.ModelPath,
			ContextSize: info.Config.ContextSize,
			GPULayers:   info.Config.GPULayers,
		}
	}
	return resp
}
