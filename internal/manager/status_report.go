package manager

import (
	"time"

	"llamactx/internal/llmctx"
	"llamactx/pkg/types"
)

// Ready reports whether at least one context is open.
func (m *Manager) Ready() bool { return m.reg.Len() > 0 }

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	now := time.Now()
	m.mu.RLock()
	lastErr := m.lastErr
	m.mu.RUnlock()
	resp := types.StatusResponse{
		Capacity:          m.reg.Capacity(),
		Workers:           m.lane.workers,
		UptimeSeconds:     int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:    now.Unix(),
		OpensTotal:        m.opens.Load(),
		GenerationsTotal:  m.generations.Load(),
		BusyRejections:    m.busy.Load(),
		GenerationsActive: int(m.active.Load()),
		LastError:         lastErr,
	}
	resp.Contexts = make([]types.ContextStatus, 0)
	for _, id := range m.reg.IDs() {
		c, err := m.reg.Get(id)
		if err != nil {
			continue
		}
		st := c.State()
		if st == llmctx.StateReleased {
			continue
		}
		p := c.Params()
		resp.Contexts = append(resp.Contexts, types.ContextStatus{
			ID:            id,
			Model:         p.ModelPath,
			State:         st.String(),
			ContextLength: p.ContextLength,
			Embedding:     p.Embedding,
			Listener:      c.Events().Attached(),
			OpenedUnix:    c.OpenedAt().Unix(),
		})
	}
	return resp
}
