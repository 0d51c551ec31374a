package pool

import "time"

// KindStats is a point-in-time view of one kind.
type KindStats struct {
	Kind         string    `json:"kind"`
	Available    int       `json:"available"`
	InUse        int       `json:"in_use"`
	TotalCreated uint64    `json:"total_created"`
	TotalReused  uint64    `json:"total_reused"`
	Misses       uint64    `json:"misses"`
	Direct       uint64    `json:"direct"`
	Abandoned    uint64    `json:"abandoned"`
	Misuse       uint64    `json:"misuse"`
	Shrinks      uint64    `json:"shrinks"`
	LastCleanup  time.Time `json:"last_cleanup"`
}

// ReuseRate is reused / (reused + created); 0 when nothing was handed out.
func (s KindStats) ReuseRate() float64 {
	total := s.TotalReused + s.TotalCreated
	if total == 0 {
		return 0
	}
	return float64(s.TotalReused) / float64(total)
}

// Stats reports every kind in declaration order.
type Stats struct {
	Enabled bool        `json:"enabled"`
	Kinds   []KindStats `json:"kinds"`
}

// Kind returns the stats of k.
func (s Stats) Kind(k Kind) KindStats {
	if int(k) < len(s.Kinds) {
		return s.Kinds[k]
	}
	return KindStats{Kind: k.String()}
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	if p == nil {
		return Stats{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := Stats{Enabled: p.enabled, Kinds: make([]KindStats, 0, kindCount)}
	for _, k := range Kinds {
		kp := p.kinds[k]
		out.Kinds = append(out.Kinds, KindStats{
			Kind:         k.String(),
			Available:    len(kp.available),
			InUse:        len(kp.inUse),
			TotalCreated: kp.created,
			TotalReused:  kp.reused,
			Misses:       kp.misses,
			Direct:       kp.direct,
			Abandoned:    kp.abandoned,
			Misuse:       kp.misuse,
			Shrinks:      kp.shrinks,
			LastCleanup:  kp.lastCleanup,
		})
	}
	return out
}
