package shuffle

import (
	"testing"

	"clipShuffle/config"
	"clipShuffle/player"
	"clipShuffle/selector"
)

type fakeEngine struct {
	events []player.Event
	loads  []string
	seeks  []int64
	paused []bool
	stops  int
	volume int
	muted  bool

	pos   int64
	posOK bool
	dur   int64
	durOK bool
}

func (e *fakeEngine) Load(path string) error    { e.loads = append(e.loads, path); return nil }
func (e *fakeEngine) SeekMS(ms int64) error     { e.seeks = append(e.seeks, ms); return nil }
func (e *fakeEngine) SetPaused(p bool) error    { e.paused = append(e.paused, p); return nil }
func (e *fakeEngine) Stop() error               { e.stops++; return nil }
func (e *fakeEngine) SetVolume(v int) error     { e.volume = v; return nil }
func (e *fakeEngine) SetMuted(m bool) error     { e.muted = m; return nil }
func (e *fakeEngine) SetFullscreen(bool) error  { return nil }
func (e *fakeEngine) PositionMS() (int64, bool) { return e.pos, e.posOK }
func (e *fakeEngine) DurationMS() (int64, bool) { return e.dur, e.durOK }

func (e *fakeEngine) Drain() []player.Event {
	q := e.events
	e.events = nil
	return q
}

func (e *fakeEngine) push(ev player.Event) {
	e.events = append(e.events, ev)
}

type fakeLibrary struct {
	files     []string
	durations map[string]int64
	rescans   int
}

func (l *fakeLibrary) Files() []string {
	return append([]string(nil), l.files...)
}

func (l *fakeLibrary) Len() int { return len(l.files) }

func (l *fakeLibrary) DurationMS(path string) (int64, bool) {
	d, ok := l.durations[path]
	return d, ok
}

func (l *fakeLibrary) Rescan([]string) { l.rescans++ }

func newTestLoop(eng *fakeEngine, lib *fakeLibrary, cfg config.Settings) *Loop {
	return NewLoop(eng, selector.NewSeeded(1), lib, cfg)
}

// startPlaying drives the loop from idle into the playing state.
func startPlaying(t *testing.T, l *Loop, eng *fakeEngine) {
	t.Helper()
	l.Start()
	l.Tick()
	if l.Display().State != StateLoading {
		t.Fatalf("state after start = %v, want loading", l.Display().State)
	}
	if len(eng.loads) != 1 {
		t.Fatalf("expected one load, got %v", eng.loads)
	}
	eng.push(player.Event{Kind: player.EventLoaded, Path: eng.loads[0]})
	l.Tick()
	if l.Display().State != StatePlaying {
		t.Fatalf("state after ready = %v, want playing", l.Display().State)
	}
}

func TestEmptyCatalogStaysIdle(t *testing.T) {
	eng := &fakeEngine{}
	lib := &fakeLibrary{}
	l := newTestLoop(eng, lib, config.Default())

	l.Start()
	for i := 0; i < 3; i++ {
		l.Tick()
	}
	if got := l.Display().State; got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
	if len(eng.loads) != 0 {
		t.Fatalf("nothing should load from an empty catalog, got %v", eng.loads)
	}
}

func TestReadyAppliesPlannedSeekThenPlays(t *testing.T) {
	eng := &fakeEngine{}
	lib := &fakeLibrary{
		files:     []string{"/v/a.mp4"},
		durations: map[string]int64{"/v/a.mp4": 120000},
	}
	l := newTestLoop(eng, lib, config.Default())

	startPlaying(t, l, eng)

	d := l.Display()
	if d.ClipEndMS < 25000 || d.ClipEndMS > 120000 {
		t.Fatalf("clip end %d outside plan bounds", d.ClipEndMS)
	}
	// The seek, when a nonzero start was drawn, happens only after ready.
	for _, s := range eng.seeks {
		if s < 0 || s >= 120000 {
			t.Fatalf("seek %d outside [0,120000)", s)
		}
	}
	if len(eng.paused) == 0 || eng.paused[len(eng.paused)-1] != false {
		t.Fatal("playback was not started after ready")
	}
}

func TestFullPlaybackHasNoSeekAndNoClipEnd(t *testing.T) {
	cfg := config.Default()
	cfg.RandomStart = false
	cfg.RandomLength = false

	eng := &fakeEngine{}
	lib := &fakeLibrary{
		files:     []string{"/v/a.mp4"},
		durations: map[string]int64{"/v/a.mp4": 120000},
	}
	l := newTestLoop(eng, lib, cfg)

	startPlaying(t, l, eng)

	if len(eng.seeks) != 0 {
		t.Fatalf("unexpected seeks in normal mode: %v", eng.seeks)
	}
	if d := l.Display(); d.ClipEndMS != 0 || d.ClipMode {
		t.Fatalf("normal mode should play to end, got %+v", d)
	}
}

func TestStaleReadyNotificationIgnored(t *testing.T) {
	eng := &fakeEngine{}
	lib := &fakeLibrary{files: []string{"/v/a.mp4"}, durations: map[string]int64{}}
	l := newTestLoop(eng, lib, config.Default())

	l.Start()
	l.Tick()
	eng.push(player.Event{Kind: player.EventLoaded, Path: "/v/superseded.mp4"})
	l.Tick()

	if got := l.Display().State; got != StateLoading {
		t.Fatalf("state = %v, want loading (stale ready must be ignored)", got)
	}
	if len(eng.paused) != 0 {
		t.Fatal("playback must not start from a stale ready notification")
	}
}

func TestDuplicateEndTriggersAdvanceOnce(t *testing.T) {
	eng := &fakeEngine{}
	lib := &fakeLibrary{
		files:     []string{"/v/a.mp4"},
		durations: map[string]int64{"/v/a.mp4": 120000},
	}
	l := newTestLoop(eng, lib, config.Default())

	startPlaying(t, l, eng)

	eng.push(player.Event{Kind: player.EventEnded})
	eng.push(player.Event{Kind: player.EventEnded})
	l.Tick()

	if len(eng.loads) != 2 {
		t.Fatalf("expected exactly one advancement (2 loads), got %v", eng.loads)
	}
	if got := l.Display().State; got != StateLoading {
		t.Fatalf("state = %v, want loading", got)
	}
}

func TestClipEndTriggerAdvances(t *testing.T) {
	eng := &fakeEngine{}
	lib := &fakeLibrary{
		files:     []string{"/v/a.mp4"},
		durations: map[string]int64{"/v/a.mp4": 120000},
	}
	l := newTestLoop(eng, lib, config.Default())

	startPlaying(t, l, eng)

	end := l.Display().ClipEndMS
	if end == 0 {
		t.Fatal("expected a planned clip end")
	}
	eng.pos, eng.posOK = end, true
	l.Tick()

	if len(eng.loads) != 2 {
		t.Fatalf("expected advancement at clip end, loads = %v", eng.loads)
	}
}

func TestClipEndNotEvaluatedInNormalMode(t *testing.T) {
	cfg := config.Default()
	cfg.RandomStart = false
	cfg.RandomLength = false

	eng := &fakeEngine{}
	lib := &fakeLibrary{
		files:     []string{"/v/a.mp4"},
		durations: map[string]int64{"/v/a.mp4": 120000},
	}
	l := newTestLoop(eng, lib, cfg)

	startPlaying(t, l, eng)

	eng.pos, eng.posOK = 600000, true
	l.Tick()
	if len(eng.loads) != 1 {
		t.Fatalf("normal mode must only advance on end-of-media, loads = %v", eng.loads)
	}
}

func TestPauseSuspendsClipEndTrigger(t *testing.T) {
	eng := &fakeEngine{}
	lib := &fakeLibrary{
		files:     []string{"/v/a.mp4"},
		durations: map[string]int64{"/v/a.mp4": 120000},
	}
	l := newTestLoop(eng, lib, config.Default())

	startPlaying(t, l, eng)

	l.TogglePause()
	l.Tick()
	if got := l.Display().State; got != StatePaused {
		t.Fatalf("state = %v, want paused", got)
	}

	eng.pos, eng.posOK = l.Display().ClipEndMS+1000, true
	l.Tick()
	if len(eng.loads) != 1 {
		t.Fatal("clip-end trigger must not fire while paused")
	}

	l.TogglePause()
	l.Tick()
	if len(eng.loads) != 2 {
		t.Fatal("clip-end trigger should fire after resuming")
	}
}

func TestDecodeErrorAdvances(t *testing.T) {
	eng := &fakeEngine{}
	lib := &fakeLibrary{files: []string{"/v/broken.mp4"}, durations: map[string]int64{}}
	l := newTestLoop(eng, lib, config.Default())

	l.Start()
	l.Tick()
	eng.push(player.Event{Kind: player.EventFailed, Err: errFake})
	l.Tick()

	if len(eng.loads) != 2 {
		t.Fatalf("a broken file should advance the shuffle, loads = %v", eng.loads)
	}
}

func TestStaleFailureAfterAdvanceDoesNotDoubleSkip(t *testing.T) {
	eng := &fakeEngine{}
	lib := &fakeLibrary{
		files:     []string{"/v/a.mp4"},
		durations: map[string]int64{"/v/a.mp4": 120000},
	}
	l := newTestLoop(eng, lib, config.Default())

	startPlaying(t, l, eng)

	// Both events were queued against the first file; the error must not
	// skip the selection the end-of-media advance just loaded.
	eng.push(player.Event{Kind: player.EventEnded})
	eng.push(player.Event{Kind: player.EventFailed, Err: errFake})
	l.Tick()

	if len(eng.loads) != 2 {
		t.Fatalf("expected one advancement, loads = %v", eng.loads)
	}
	if got := l.Display().State; got != StateLoading {
		t.Fatalf("state = %v, want loading", got)
	}
}

func TestRescanToEmptyGoesIdleAndStays(t *testing.T) {
	eng := &fakeEngine{}
	lib := &fakeLibrary{
		files:     []string{"/v/a.mp4"},
		durations: map[string]int64{"/v/a.mp4": 120000},
	}
	l := newTestLoop(eng, lib, config.Default())

	startPlaying(t, l, eng)

	lib.files = nil
	l.Rescan()
	l.Tick()

	if got := l.Display().State; got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
	if eng.stops == 0 {
		t.Fatal("playback should stop when the catalog empties")
	}
	for i := 0; i < 3; i++ {
		l.Tick()
	}
	if got := l.Display().State; got != StateIdle {
		t.Fatalf("state = %v, want to stay idle", got)
	}

	// Re-adding a folder resumes on the next rescan.
	lib.files = []string{"/v/a.mp4"}
	l.Rescan()
	l.Tick()
	if got := l.Display().State; got != StateLoading {
		t.Fatalf("state = %v, want loading after videos reappear", got)
	}
}

func TestDeferredPlanUsesDecoderDuration(t *testing.T) {
	eng := &fakeEngine{}
	lib := &fakeLibrary{files: []string{"/v/a.mp4"}, durations: map[string]int64{}}
	l := newTestLoop(eng, lib, config.Default())

	l.Start()
	l.Tick()
	if d := l.Display(); d.ClipEndMS != 0 {
		t.Fatalf("plan should be deferred while duration unknown, got %+v", d)
	}

	eng.dur, eng.durOK = 90000, true
	eng.push(player.Event{Kind: player.EventLoaded, Path: "/v/a.mp4"})
	l.Tick()

	d := l.Display()
	if d.State != StatePlaying {
		t.Fatalf("state = %v, want playing", d.State)
	}
	if d.ClipEndMS <= 0 || d.ClipEndMS > 90000 {
		t.Fatalf("deferred clip end %d outside (0,90000]", d.ClipEndMS)
	}
}

func TestRemainingUnknownWithoutDuration(t *testing.T) {
	cfg := config.Default()
	cfg.RandomStart = false
	cfg.RandomLength = false

	eng := &fakeEngine{}
	lib := &fakeLibrary{files: []string{"/v/a.mp4"}, durations: map[string]int64{}}
	l := newTestLoop(eng, lib, cfg)

	l.Start()
	l.Tick()
	eng.push(player.Event{Kind: player.EventLoaded, Path: "/v/a.mp4"})
	l.Tick()

	d := l.Display()
	if d.RemainingKnown || d.DurationKnown {
		t.Fatalf("remaining/duration should be unknown, got %+v", d)
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	cfg := config.Default()
	cfg.RandomStart = false
	cfg.RandomLength = false

	eng := &fakeEngine{}
	lib := &fakeLibrary{
		files:     []string{"/v/a.mp4"},
		durations: map[string]int64{"/v/a.mp4": 10000},
	}
	l := newTestLoop(eng, lib, cfg)

	startPlaying(t, l, eng)

	// Position can momentarily overshoot the duration near the end.
	eng.pos, eng.posOK = 10400, true
	l.Tick()
	d := l.Display()
	if d.RemainingMS != 0 {
		t.Fatalf("remaining = %d, want clamp to 0", d.RemainingMS)
	}
	if d.SeekFraction > 1 {
		t.Fatalf("seek fraction = %f, want clamp to 1", d.SeekFraction)
	}
}

func TestVolumeChangePersists(t *testing.T) {
	eng := &fakeEngine{}
	lib := &fakeLibrary{}
	l := newTestLoop(eng, lib, config.Default())

	var saved []config.Settings
	l.OnConfigChange = func(c config.Settings) { saved = append(saved, c) }

	l.SetVolume(55)
	l.Tick()

	if eng.volume != 55 {
		t.Fatalf("engine volume = %d, want 55", eng.volume)
	}
	if len(saved) != 1 || saved[0].Volume != 55 {
		t.Fatalf("expected one persisted change with volume 55, got %+v", saved)
	}

	l.ToggleMute()
	l.Tick()
	if !eng.muted {
		t.Fatal("engine should be muted")
	}
	if len(saved) != 2 || !saved[1].Muted {
		t.Fatalf("expected persisted mute, got %+v", saved)
	}
}

func TestNextFromIdleStartsPlayback(t *testing.T) {
	eng := &fakeEngine{}
	lib := &fakeLibrary{files: []string{"/v/a.mp4"}, durations: map[string]int64{}}
	l := newTestLoop(eng, lib, config.Default())

	l.Tick()
	if got := l.Display().State; got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}

	l.Next()
	l.Tick()
	if got := l.Display().State; got != StateLoading {
		t.Fatalf("state = %v, want loading", got)
	}
}

var errFake = fakeError("decoder rejected the file")

type fakeError string

func (e fakeError) Error() string { return string(e) }
