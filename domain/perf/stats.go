package perf

import "time"

// Stats is the polled observability snapshot of a Monitor.
type Stats struct {
	CurrentFPS float64 `json:"current_fps"`
	AverageFPS float64 `json:"average_fps"`
	MinFPS     float64 `json:"min_fps"`
	MaxFPS     float64 `json:"max_fps"`

	CurrentFrameTimeMS float64 `json:"current_frame_time_ms"`
	AverageFrameTimeMS float64 `json:"average_frame_time_ms"`
	MinFrameTimeMS     float64 `json:"min_frame_time_ms"`
	MaxFrameTimeMS     float64 `json:"max_frame_time_ms"`

	CurrentMemoryMB float64 `json:"current_memory_mb"`
	AverageMemoryMB float64 `json:"average_memory_mb"`
	MinMemoryMB     float64 `json:"min_memory_mb"`
	MaxMemoryMB     float64 `json:"max_memory_mb"`

	FramesProcessed uint64 `json:"frames_processed"`
	FramesDropped   uint64 `json:"frames_dropped"`
	FramesSkipped   uint64 `json:"frames_skipped"`

	State       State   `json:"state"`
	Transitions uint64  `json:"transitions"`
	Dropping    bool    `json:"dropping"`
	SlowFrames  int     `json:"slow_frames"`
	TargetFPS   float64 `json:"target_fps"`

	// DropRate and SkipRate are percentages of processed frames.
	DropRate float64 `json:"drop_rate"`
	SkipRate float64 `json:"skip_rate"`

	SessionDuration time.Duration `json:"session_duration"`
}

// Stats returns the current snapshot.
func (m *Monitor) Stats() Stats {
	st := Stats{
		CurrentFPS:         m.fps.Current(),
		AverageFPS:         m.fps.Average(),
		MinFPS:             m.fps.Min(),
		MaxFPS:             m.fps.Max(),
		CurrentFrameTimeMS: m.frameTime.Current(),
		AverageFrameTimeMS: m.frameTime.Average(),
		MinFrameTimeMS:     m.frameTime.Min(),
		MaxFrameTimeMS:     m.frameTime.Max(),
		CurrentMemoryMB:    m.memory.Current(),
		AverageMemoryMB:    m.memory.Average(),
		MinMemoryMB:        m.memory.Min(),
		MaxMemoryMB:        m.memory.Max(),
		FramesProcessed:    m.processed,
		FramesDropped:      m.dropped,
		FramesSkipped:      m.skipped,
		State:              m.state,
		Transitions:        m.transitions,
		Dropping:           m.dropping,
		SlowFrames:         m.slowFrames,
		TargetFPS:          m.cfg.TargetFPS,
		SessionDuration:    m.clock.Now().Sub(m.started),
	}
	if m.processed > 0 {
		st.DropRate = float64(m.dropped) / float64(m.processed) * 100
		st.SkipRate = float64(m.skipped) / float64(m.processed) * 100
	}
	return st
}
