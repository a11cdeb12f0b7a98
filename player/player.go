package player

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/dexterlb/mpvipc"
	log "go.uber.org/zap"
)

// State mirrors the decoder-side lifecycle of the loaded media.
type State int

const (
	StateStopped State = iota
	StateOpening
	StatePlaying
	StatePaused
	StateEnded
	StateError
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateOpening:
		return "opening"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	}
	return "unknown"
}

// EventKind classifies decoder notifications relevant to advancement.
type EventKind int

const (
	// EventLoaded fires when the decoder has opened a file and it is safe
	// to seek. Path identifies the file, so a notification for a
	// superseded load can be told apart from the current one.
	EventLoaded EventKind = iota
	// EventEnded fires on decoder-reported end of media.
	EventEnded
	// EventFailed fires when a file fails to open or errors mid-playback.
	EventFailed
)

type Event struct {
	Kind EventKind
	Path string
	Err  error
}

// Player owns the spawned mpv process and its JSON IPC connection. mpv
// notifications arrive on the IPC goroutine and are buffered into a queue
// that the poll loop drains once per tick, so all handling stays on the
// control thread.
type Player struct {
	Conn *mpvipc.Connection

	cmd    *exec.Cmd
	waited chan error

	mu    sync.Mutex
	queue []queuedEvent
	state State
	path  string
	gen   uint64
}

// queuedEvent remembers which load an event belongs to, so notifications
// from a superseded load can be filtered out at drain time.
type queuedEvent struct {
	Event
	gen uint64
}

// Launch starts mpv with an IPC socket and connects to it. A missing mpv
// binary is the caller's fatal startup condition: no playback is possible
// without the decoder backend.
func Launch(ctx context.Context, binary, socket string) (*Player, error) {
	if binary == "" {
		binary = "mpv"
	}
	bin, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("decoder backend not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin,
		"--idle=yes",
		"--keep-open=no",
		"--force-window=yes",
		"--no-terminal",
		"--cursor-autohide=2000",
		"--input-ipc-server="+socket,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting mpv: %w", err)
	}

	p := &Player{
		cmd:    cmd,
		waited: make(chan error, 1),
		state:  StateStopped,
	}
	p.Conn = mpvipc.NewConnection(socket)
	go func() { p.waited <- cmd.Wait() }()

	// The socket appears once mpv finishes starting up. mpv can also die
	// before creating it (no display, bad GPU config), so the wait is
	// bounded by the child's lifetime and an overall deadline.
	deadline := time.After(10 * time.Second)
	for {
		if err = p.Conn.Open(); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case werr := <-p.waited:
			return nil, fmt.Errorf("decoder backend exited before its control socket appeared: %v", werr)
		case <-deadline:
			return nil, fmt.Errorf("decoder backend did not create its control socket: %w", err)
		case <-time.After(50 * time.Millisecond):
		}
	}

	go p.pump(ctx)
	return p, nil
}

// pump translates raw mpv events into the normalized queue.
func (p *Player) pump(ctx context.Context) {
	events, stop := p.Conn.NewEventListener()
	defer close(stop)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.translate(ev)
		}
	}
}

func (p *Player) translate(ev *mpvipc.Event) {
	switch ev.Name {
	case "file-loaded":
		p.mu.Lock()
		path := p.path
		p.mu.Unlock()
		// mpv knows which file actually loaded; prefer its answer so a
		// notification for a superseded load carries the stale path.
		if v, err := p.Conn.Get("path"); err == nil {
			if s, ok := v.(string); ok {
				path = s
			}
		}
		p.enqueue(Event{Kind: EventLoaded, Path: path}, StatePlaying)
	case "end-file":
		switch ev.Reason {
		case "eof":
			p.enqueue(Event{Kind: EventEnded}, StateEnded)
		case "error":
			p.enqueue(Event{
				Kind: EventFailed,
				Err:  fmt.Errorf("mpv could not play the file"),
			}, StateError)
		default:
			// "stop": a superseded load or an explicit stop, not a finish.
		}
	}
}

func (p *Player) enqueue(ev Event, state State) {
	p.mu.Lock()
	p.queue = append(p.queue, queuedEvent{Event: ev, gen: p.gen})
	p.state = state
	p.mu.Unlock()
	log.S().Debugf("mpv event %d path=%q err=%v", ev.Kind, ev.Path, ev.Err)
}

// Drain returns and clears the buffered decoder events. Events enqueued
// before the most recent load belong to a superseded file and are dropped,
// so a stale end or error notification cannot skip the current one.
func (p *Player) Drain() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, q := range p.queue {
		if q.gen == p.gen {
			out = append(out, q.Event)
		}
	}
	p.queue = nil
	return out
}

// State reports the decoder-side playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Load replaces whatever is playing or opening with the given file. An
// in-flight open is silently superseded by mpv.
func (p *Player) Load(path string) error {
	p.begin(path)
	_, err := p.Conn.Call("loadfile", path)
	return err
}

// begin opens a new load generation; queued events from the previous one
// are stale from here on.
func (p *Player) begin(path string) {
	p.mu.Lock()
	p.gen++
	p.path = path
	p.state = StateOpening
	p.mu.Unlock()
}

// SeekMS jumps to an absolute offset. Only valid once the decoder has
// reported the file as loaded.
func (p *Player) SeekMS(offset int64) error {
	_, err := p.Conn.Call("seek", float64(offset)/1000.0, "absolute")
	return err
}

func (p *Player) SetPaused(paused bool) error {
	p.mu.Lock()
	if paused && p.state == StatePlaying {
		p.state = StatePaused
	} else if !paused && p.state == StatePaused {
		p.state = StatePlaying
	}
	p.mu.Unlock()
	return p.Conn.Set("pause", paused)
}

func (p *Player) Stop() error {
	p.mu.Lock()
	p.path = ""
	p.state = StateStopped
	p.mu.Unlock()
	_, err := p.Conn.Call("stop")
	return err
}

func (p *Player) SetVolume(percent int) error {
	return p.Conn.Set("volume", float64(percent))
}

func (p *Player) SetMuted(muted bool) error {
	return p.Conn.Set("mute", muted)
}

func (p *Player) SetFullscreen(on bool) error {
	return p.Conn.Set("fullscreen", on)
}

// PositionMS reports the current playback position. The second return is
// false while mpv has no file loaded or has not started decoding yet.
func (p *Player) PositionMS() (int64, bool) {
	return p.getMS("time-pos")
}

// DurationMS reports the total duration of the loaded file, once known.
func (p *Player) DurationMS() (int64, bool) {
	return p.getMS("duration")
}

func (p *Player) getMS(property string) (int64, bool) {
	v, err := p.Conn.Get(property)
	if err != nil {
		return 0, false
	}
	seconds, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int64(seconds * 1000), true
}

// Close shuts the mpv process down and releases the IPC connection.
func (p *Player) Close() error {
	if !p.Conn.IsClosed() {
		_, _ = p.Conn.Call("quit")
		if err := p.Conn.Close(); err != nil {
			return err
		}
	}
	if p.waited != nil {
		<-p.waited
	}
	return nil
}
