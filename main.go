package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	log "go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clipShuffle/catalog"
	"clipShuffle/config"
	"clipShuffle/player"
	"clipShuffle/remote"
	"clipShuffle/selector"
	"clipShuffle/shuffle"
	"clipShuffle/ui"
	"clipShuffle/watcher"
)

const AppVersion = "0.1.0"

func main() {
	debugMode := flag.Bool("debug", false, "enable verbose diagnostic logging")
	version := flag.Bool("version", false, "prints current version and exits")
	flag.Parse()

	if *version {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			fmt.Println(buildInfo.Main.Path, AppVersion, buildInfo.GoVersion)
		} else {
			fmt.Println(AppVersion)
		}
		return
	}

	// Optional developer overrides (mpv binary, socket, settings path).
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CLIPSHUFFLE_CONFIG")
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}

	// Setup logging. The terminal belongs to the TUI, so logs go to a file
	// beside the settings.
	logger := newLogger(*debugMode, filepath.Join(filepath.Dir(cfgPath), "ClipShuffle.log"))
	defer logger.Sync()

	undo := log.ReplaceGlobals(logger)
	defer undo()

	cfg := config.Load(cfgPath)
	log.S().Debugf("settings: %+v", cfg)

	cat := catalog.New()
	cat.Rescan(cfg.Paths)

	watchEvents := make(chan fsnotify.Event, 512)
	watch, err := watcher.Init(cfg.Paths, watchEvents)
	if err != nil {
		log.S().Fatal(err)
	}

	socket := os.Getenv("MPV_SOCKET")
	if socket == "" {
		socket = filepath.Join(os.TempDir(), fmt.Sprintf("clipshuffle-mpv-%d.sock", os.Getpid()))
	}
	engine, err := player.Launch(ctx, os.Getenv("MPV_BIN"), socket)
	if err != nil {
		// No decoder backend means no playback at all.
		fmt.Fprintf(os.Stderr, "ClipShuffle: %v\n", err)
		log.S().Error(err)
		logger.Sync()
		os.Exit(1)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.S().Error(err)
		}
	}()

	if err := engine.SetVolume(cfg.Volume); err != nil {
		log.S().Warnf("volume: %v", err)
	}
	if err := engine.SetMuted(cfg.Muted); err != nil {
		log.S().Warnf("mute: %v", err)
	}

	loop := shuffle.NewLoop(engine, selector.New(), cat, cfg)
	loop.OnConfigChange = func(c config.Settings) {
		if err := config.Save(c, cfgPath); err != nil {
			log.S().Errorf("saving settings: %v", err)
		}
	}
	loop.Start()

	program := tea.NewProgram(ui.NewModel(loop, func(c config.Settings) {
		watch.SetPaths(c.Paths)
	}))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cat.Worker(ctx)
	})
	g.Go(func() error {
		return watch.Run(ctx)
	})
	g.Go(func() error {
		// Folder changes on disk feed back into the catalog.
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-watchEvents:
				loop.Rescan()
			}
		}
	})
	if cfg.Remote != "" {
		srv := remote.New(loop)
		g.Go(func() error {
			return srv.ListenAndServe(ctx, cfg.Remote)
		})
	}
	g.Go(func() error {
		defer stop()
		_, err := program.Run()
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		program.Quit()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.S().Error(err)
	}
}

// newLogger builds the process logger: development config at debug level
// with --debug, otherwise the production config trimmed to warnings.
func newLogger(debugMode bool, path string) *log.Logger {
	var cfg log.Config
	if debugMode {
		cfg = log.NewDevelopmentConfig()
	} else {
		cfg = log.NewProductionConfig()
		cfg.Level = log.NewAtomicLevelAt(log.WarnLevel)
	}
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return log.Must(cfg.Build())
}
