package server

import (
	"sync/atomic"
)

// Metrics 记录权威循环运行期的关键指标（用于监控与调试）
type Metrics struct {
	TickCount         int64 // 已执行的 Tick 次数
	InputsAccepted    int64 // 被应用的客户端输入数
	InputsDropped     int64 // 因玩家待处理队列溢出被丢弃的最旧输入数
	ChanFullDiscarded int64 // 因输入通道满被丢弃的 Move 数
	DecodeErrors      int64 // 无法解析而被丢弃的行数
	Joins             int64 // 成功进入世界的 Join 数
	Removals          int64 // 被移除的连接数
	BroadcastFailures int64 // 入队失败的发送数
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
}

func (m *Metrics) IncAccepted()          { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *Metrics) IncDropped()           { atomic.AddInt64(&m.InputsDropped, 1) }
func (m *Metrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *Metrics) IncDecodeErrors()      { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *Metrics) IncJoins()             { atomic.AddInt64(&m.Joins, 1) }
func (m *Metrics) IncRemovals()          { atomic.AddInt64(&m.Removals, 1) }
func (m *Metrics) IncBroadcastFailures() { atomic.AddInt64(&m.BroadcastFailures, 1) }
func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"inputs_accepted":     atomic.LoadInt64(&m.InputsAccepted),
		"inputs_dropped":      atomic.LoadInt64(&m.InputsDropped),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"decode_errors":       atomic.LoadInt64(&m.DecodeErrors),
		"joins":               atomic.LoadInt64(&m.Joins),
		"removals":            atomic.LoadInt64(&m.Removals),
		"broadcast_failures":  atomic.LoadInt64(&m.BroadcastFailures),
		"avg_tick_ms":         avgMs,
	}
}
