package shuffle

// Display is the derived UI snapshot recomputed at the end of every tick.
// Times never go negative and remaining time is flagged unknown, rather
// than zero, while the decoder has not reported a duration yet.
type Display struct {
	State          State   `json:"state"`
	Path           string  `json:"path,omitempty"`
	PositionMS     int64   `json:"position_ms"`
	DurationMS     int64   `json:"duration_ms"`
	DurationKnown  bool    `json:"duration_known"`
	RemainingMS    int64   `json:"remaining_ms"`
	RemainingKnown bool    `json:"remaining_known"`
	ClipMode       bool    `json:"clip_mode"`
	ClipEndMS      int64   `json:"clip_end_ms,omitempty"`
	SeekFraction   float64 `json:"seek_fraction"`
	Volume         int     `json:"volume"`
	Muted          bool    `json:"muted"`
	Fullscreen     bool    `json:"fullscreen"`
	CatalogSize    int     `json:"catalog_size"`
}

func (l *Loop) computeDisplay() {
	d := Display{
		State:       l.state,
		ClipMode:    l.cfg.RandomLength,
		Volume:      l.cfg.Volume,
		Muted:       l.cfg.Muted,
		Fullscreen:  l.fullscreen,
		CatalogSize: l.lib.Len(),
	}
	if l.sess != nil {
		d.Path = l.sess.path
		pos, _ := l.engine.PositionMS()
		d.PositionMS = max(pos, 0)

		dur := l.sess.durationMS
		if dur <= 0 {
			if v, ok := l.engine.DurationMS(); ok {
				dur = v
			}
		}
		if dur > 0 {
			d.DurationMS = dur
			d.DurationKnown = true
			d.SeekFraction = min(float64(d.PositionMS)/float64(dur), 1)
		}

		if d.ClipMode && l.sess.planned && l.sess.endMS > 0 {
			d.ClipEndMS = l.sess.endMS
			d.RemainingMS = max(l.sess.endMS-d.PositionMS, 0)
			d.RemainingKnown = true
		} else if d.DurationKnown {
			d.RemainingMS = max(d.DurationMS-d.PositionMS, 0)
			d.RemainingKnown = true
		}
	}
	l.mu.Lock()
	l.display = d
	l.mu.Unlock()
}

// Display returns the snapshot computed by the most recent tick. Safe to
// call from any goroutine.
func (l *Loop) Display() Display {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.display
}
