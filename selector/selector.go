package selector

import (
	"errors"
	"math/rand"
	"time"

	"clipShuffle/config"
)

// ErrNoPlayableMedia is returned when the catalog has nothing to pick from.
var ErrNoPlayableMedia = errors.New("no playable media")

// Plan describes where a selected video should start and stop.
// EndMS of zero means play through to the end of the file.
type Plan struct {
	StartMS int64
	EndMS   int64
}

// Selector picks the next video and plans its clip window. Sampling is
// uniform with replacement, so immediate repeats are permitted.
type Selector struct {
	rng *rand.Rand
}

func New() *Selector {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a selector with a deterministic sequence of draws.
func NewSeeded(seed int64) *Selector {
	return &Selector{rng: rand.New(rand.NewSource(seed))}
}

// Pick chooses one path uniformly at random from the catalog.
func (s *Selector) Pick(files []string) (string, error) {
	if len(files) == 0 {
		return "", ErrNoPlayableMedia
	}
	return files[s.rng.Intn(len(files))], nil
}

// NewPlan draws the start offset and clip end for a video of the given
// duration. durationMS of zero means the duration is not known yet: the
// start falls back to 0 and the clip end is left unclamped, since
// end-of-media will cut a too-long clip short anyway.
func (s *Selector) NewPlan(cfg config.Settings, durationMS int64) Plan {
	var p Plan
	if cfg.RandomStart && durationMS > 0 {
		p.StartMS = s.rng.Int63n(durationMS)
	}
	if cfg.RandomLength {
		clipMS := int64(cfg.MinSeconds) * 1000
		if cfg.MaxSeconds > cfg.MinSeconds {
			clipMS += 1000 * s.rng.Int63n(int64(cfg.MaxSeconds-cfg.MinSeconds)+1)
		}
		p.EndMS = p.StartMS + clipMS
		if durationMS > 0 && p.EndMS > durationMS {
			p.EndMS = durationMS
		}
	}
	return p
}
