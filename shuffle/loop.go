package shuffle

import (
	"encoding/json"
	"sync"
	"time"

	"clipShuffle/config"
	"clipShuffle/player"
	"clipShuffle/selector"

	log "go.uber.org/zap"
)

// PollInterval is the fixed period of the control tick.
const PollInterval = 250 * time.Millisecond

// State is the control-side playback state, distinct from the decoder's own
// state reported by the engine.
type State int

const (
	// StateIdle means there is nothing to play: no folders configured or
	// no videos found in them.
	StateIdle State = iota
	// StateLoading means the engine is opening a file; the planned start
	// offset is applied once it reports ready.
	StateLoading
	StatePlaying
	StatePaused
	// StateAdvancing is transient: it immediately re-enters StateLoading
	// with the next selection, or StateIdle when the catalog is empty.
	StateAdvancing
)

// MarshalJSON renders the state by name for the remote API.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateAdvancing:
		return "advancing"
	}
	return "unknown"
}

// Engine is the decoder surface the loop drives. *player.Player satisfies
// it; tests substitute a scripted fake.
type Engine interface {
	Load(path string) error
	SeekMS(offset int64) error
	SetPaused(paused bool) error
	Stop() error
	SetVolume(percent int) error
	SetMuted(muted bool) error
	SetFullscreen(on bool) error
	PositionMS() (int64, bool)
	DurationMS() (int64, bool)
	Drain() []player.Event
}

// Library is the catalog surface the loop selects from.
type Library interface {
	Files() []string
	Len() int
	DurationMS(path string) (int64, bool)
	Rescan(paths []string)
}

// session is the currently loaded video and its clip plan. It is replaced
// wholesale on advancement, which is what makes duplicate end triggers
// harmless: the advanced flag and the state guard both belong to the old
// session.
type session struct {
	path       string
	startMS    int64
	endMS      int64 // 0 = play to the end of the file
	durationMS int64 // 0 = not known yet
	planned    bool
	advanced   bool
}

// Loop is the timer-driven control core. All mutation happens on the tick
// thread: user intents from the UI and the HTTP remote are enqueued and
// drained at the top of each tick, then decoder events, then the clip-end
// check, and the derived display values are recomputed last so readers never
// observe a half-applied transition.
type Loop struct {
	engine Engine
	sel    *selector.Selector
	lib    Library

	// OnConfigChange is invoked whenever a confirmed settings change
	// (volume, mute, settings dialog) should be persisted.
	OnConfigChange func(config.Settings)

	intents chan func()

	mu         sync.RWMutex
	cfg        config.Settings
	display    Display
	state      State
	sess       *session
	fullscreen bool
}

func NewLoop(engine Engine, sel *selector.Selector, lib Library, cfg config.Settings) *Loop {
	return &Loop{
		engine:  engine,
		sel:     sel,
		lib:     lib,
		cfg:     cfg,
		state:   StateIdle,
		intents: make(chan func(), 64),
	}
}

// Tick runs one iteration of the poll loop. It must only ever be called
// from a single goroutine.
func (l *Loop) Tick() {
drain:
	for {
		select {
		case fn := <-l.intents:
			fn()
		default:
			break drain
		}
	}

	for _, ev := range l.engine.Drain() {
		before := l.sess
		switch ev.Kind {
		case player.EventLoaded:
			l.onLoaded(ev.Path)
		case player.EventEnded:
			l.onEnded()
		case player.EventFailed:
			l.onFailed(ev)
		}
		// Once the session was replaced, the rest of the batch was queued
		// against the superseded load and must not skip the new one.
		if l.sess != before {
			break
		}
	}

	// Clip-end check runs after the event drain, so decoder end-of-media
	// takes precedence when both could fire in the same tick. Not
	// evaluated while paused.
	if l.state == StatePlaying && l.sess != nil && !l.sess.advanced &&
		l.cfg.RandomLength && l.sess.endMS > 0 {
		if pos, ok := l.engine.PositionMS(); ok && pos >= l.sess.endMS {
			l.advance()
		}
	}

	l.computeDisplay()
}

func (l *Loop) onLoaded(path string) {
	if l.sess == nil || path != l.sess.path {
		log.S().Debugf("ignoring ready notification for superseded %q", path)
		return
	}
	if l.state != StateLoading {
		return
	}
	if l.sess.durationMS <= 0 {
		if d, ok := l.engine.DurationMS(); ok {
			l.sess.durationMS = d
		}
	}
	if !l.sess.planned {
		p := l.sel.NewPlan(l.cfg, l.sess.durationMS)
		l.sess.startMS, l.sess.endMS = p.StartMS, p.EndMS
		l.sess.planned = true
	}
	if l.sess.startMS > 0 {
		if err := l.engine.SeekMS(l.sess.startMS); err != nil {
			log.S().Warnf("seek to %dms: %v", l.sess.startMS, err)
		}
	}
	if err := l.engine.SetPaused(false); err != nil {
		log.S().Warnf("play: %v", err)
	}
	l.state = StatePlaying
	log.S().Infof("playing %q from %dms to %dms of %dms",
		l.sess.path, l.sess.startMS, l.sess.endMS, l.sess.durationMS)
}

func (l *Loop) onEnded() {
	if l.sess == nil || l.sess.advanced {
		return
	}
	// A stale end notification after a new load has been issued belongs
	// to the previous session.
	if l.state != StatePlaying && l.state != StatePaused {
		return
	}
	l.advance()
}

// onFailed treats a broken file as ended: the shuffle moves on instead of
// halting, and the file is only retried if re-selected later.
func (l *Loop) onFailed(ev player.Event) {
	if l.sess == nil || l.sess.advanced {
		return
	}
	log.S().Warnf("decode error on %q: %v", l.sess.path, ev.Err)
	l.advance()
}

// advance moves to the next selection exactly once per session.
func (l *Loop) advance() {
	if l.sess != nil {
		l.sess.advanced = true
	}
	l.state = StateAdvancing
	l.selectNext()
}

func (l *Loop) selectNext() {
	path, err := l.sel.Pick(l.lib.Files())
	if err != nil {
		if l.state != StateIdle {
			log.S().Info("no videos found, waiting for folders")
		}
		l.toIdle()
		return
	}

	sess := &session{path: path}
	// Plan now when the probe worker already knows the duration,
	// otherwise defer to the ready notification.
	if d, ok := l.lib.DurationMS(path); ok && d > 0 {
		sess.durationMS = d
		p := l.sel.NewPlan(l.cfg, d)
		sess.startMS, sess.endMS = p.StartMS, p.EndMS
		sess.planned = true
	}
	l.sess = sess
	l.state = StateLoading
	if err := l.engine.Load(path); err != nil {
		log.S().Warnf("load %q: %v", path, err)
	}
}

func (l *Loop) toIdle() {
	l.sess = nil
	l.state = StateIdle
	if err := l.engine.Stop(); err != nil {
		log.S().Debugf("stop: %v", err)
	}
}

func (l *Loop) rescan() {
	l.lib.Rescan(l.snapshotConfig().Paths)
	if l.lib.Len() == 0 {
		if l.state != StateIdle {
			l.toIdle()
		}
		return
	}
	if l.state == StateIdle {
		l.selectNext()
	}
}

func (l *Loop) persist() {
	if l.OnConfigChange != nil {
		l.OnConfigChange(l.snapshotConfig())
	}
}

func (l *Loop) snapshotConfig() config.Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cfg := l.cfg
	cfg.Paths = append([]string(nil), l.cfg.Paths...)
	return cfg
}

func (l *Loop) setConfig(cfg config.Settings) {
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
}

// Config returns the active settings snapshot.
func (l *Loop) Config() config.Settings {
	return l.snapshotConfig()
}

// do enqueues an intent for the next tick. Intents may be posted from any
// goroutine; they run on the tick thread.
func (l *Loop) do(fn func()) {
	select {
	case l.intents <- fn:
	default:
		log.S().Warn("intent queue full, dropping input")
	}
}

// Start kicks off playback once the initial catalog scan is done.
func (l *Loop) Start() {
	l.do(func() {
		if l.state == StateIdle {
			l.selectNext()
		}
	})
}

// Next skips to the next random selection.
func (l *Loop) Next() {
	l.do(func() {
		if l.state == StateIdle {
			l.selectNext()
			return
		}
		if l.sess != nil && !l.sess.advanced {
			l.advance()
		}
	})
}

// TogglePause flips between playing and paused. Ticks keep running while
// paused so the display stays fresh, but the clip countdown does not burn
// down.
func (l *Loop) TogglePause() {
	l.do(func() {
		switch l.state {
		case StatePlaying:
			if err := l.engine.SetPaused(true); err != nil {
				log.S().Warnf("pause: %v", err)
				return
			}
			l.state = StatePaused
		case StatePaused:
			if err := l.engine.SetPaused(false); err != nil {
				log.S().Warnf("resume: %v", err)
				return
			}
			l.state = StatePlaying
		}
	})
}

// SeekFraction seeks to a 0..1 position within the full video. Ignored in
// clip mode, where the seek bar is indicator-only.
func (l *Loop) SeekFraction(f float64) {
	l.do(func() {
		if l.sess == nil || l.snapshotConfig().RandomLength {
			return
		}
		if l.state != StatePlaying && l.state != StatePaused {
			return
		}
		dur := l.sess.durationMS
		if dur <= 0 {
			d, ok := l.engine.DurationMS()
			if !ok || d <= 0 {
				return
			}
			dur = d
			l.sess.durationMS = d
		}
		f = min(max(f, 0), 1)
		if err := l.engine.SeekMS(int64(f * float64(dur))); err != nil {
			log.S().Warnf("seek: %v", err)
		}
	})
}

// SeekBy seeks relative to the current position. Ignored in clip mode.
func (l *Loop) SeekBy(deltaMS int64) {
	l.do(func() {
		if l.sess == nil || l.snapshotConfig().RandomLength {
			return
		}
		if l.state != StatePlaying && l.state != StatePaused {
			return
		}
		pos, ok := l.engine.PositionMS()
		if !ok {
			return
		}
		if err := l.engine.SeekMS(max(pos+deltaMS, 0)); err != nil {
			log.S().Warnf("seek: %v", err)
		}
	})
}

// SetVolume applies and persists a 0-100 volume level.
func (l *Loop) SetVolume(percent int) {
	l.do(func() { l.applyVolume(percent) })
}

// AdjustVolume nudges the volume by the given delta.
func (l *Loop) AdjustVolume(delta int) {
	l.do(func() { l.applyVolume(l.snapshotConfig().Volume + delta) })
}

func (l *Loop) applyVolume(percent int) {
	percent = min(max(percent, 0), 100)
	if err := l.engine.SetVolume(percent); err != nil {
		log.S().Warnf("volume: %v", err)
		return
	}
	cfg := l.snapshotConfig()
	cfg.Volume = percent
	l.setConfig(cfg)
	l.persist()
}

// ToggleMute flips and persists the mute flag.
func (l *Loop) ToggleMute() {
	l.do(func() {
		cfg := l.snapshotConfig()
		cfg.Muted = !cfg.Muted
		if err := l.engine.SetMuted(cfg.Muted); err != nil {
			log.S().Warnf("mute: %v", err)
			return
		}
		l.setConfig(cfg)
		l.persist()
	})
}

// ToggleFullscreen flips the decoder window's fullscreen state.
func (l *Loop) ToggleFullscreen() {
	l.do(func() {
		l.mu.Lock()
		l.fullscreen = !l.fullscreen
		on := l.fullscreen
		l.mu.Unlock()
		if err := l.engine.SetFullscreen(on); err != nil {
			log.S().Warnf("fullscreen: %v", err)
		}
	})
}

// Apply installs new settings, persists them, rescans the catalog and
// restarts playback with the new rules.
func (l *Loop) Apply(cfg config.Settings) {
	l.do(func() {
		l.setConfig(cfg)
		if err := l.engine.SetVolume(cfg.Volume); err != nil {
			log.S().Warnf("volume: %v", err)
		}
		if err := l.engine.SetMuted(cfg.Muted); err != nil {
			log.S().Warnf("mute: %v", err)
		}
		l.persist()
		l.lib.Rescan(cfg.Paths)
		if l.lib.Len() == 0 {
			l.toIdle()
			return
		}
		l.selectNext()
	})
}

// Rescan rebuilds the catalog from the configured folders, dropping to idle
// when nothing is left and resuming when videos reappear.
func (l *Loop) Rescan() {
	l.do(func() { l.rescan() })
}
