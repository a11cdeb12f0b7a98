package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	log "go.uber.org/zap"
)

// FileName is the settings file kept beside the executable.
const FileName = "ClipShuffle.config.json"

// Settings holds all user-tunable playback options.
type Settings struct {
	// Folders scanned for video files, in the order the user added them.
	Paths []string `json:"paths"`
	// Clip duration bounds in seconds, used when RandomLength is on.
	MinSeconds int `json:"min_seconds"`
	MaxSeconds int `json:"max_seconds"`
	// Start each video at a random offset instead of the beginning.
	RandomStart bool `json:"random_start"`
	// Play a bounded random-length clip instead of the whole video.
	RandomLength bool `json:"random_length"`
	Volume       int  `json:"volume"`
	Muted        bool `json:"muted"`
	// Listen address for the HTTP remote control, empty to disable.
	Remote string `json:"remote"`
}

// Default returns the built-in settings used when no file exists.
func Default() Settings {
	return Settings{
		Paths:        nil,
		MinSeconds:   25,
		MaxSeconds:   45,
		RandomStart:  true,
		RandomLength: true,
		Volume:       80,
		Muted:        false,
		Remote:       "",
	}
}

// DefaultPath returns the settings file path beside the executable,
// falling back to the working directory when the executable path is
// unavailable.
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return FileName
	}
	return filepath.Join(filepath.Dir(exe), FileName)
}

// Load reads the settings file and overlays it on the defaults, so keys
// added in newer versions appear automatically in older files. A missing or
// malformed file falls back to the defaults rather than failing.
func Load(path string) Settings {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.S().Debugf("reading settings %q: %v", path, err)
		}
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		log.S().Debugf("parsing settings %q: %v, using defaults", path, err)
		return Default()
	}
	return normalize(s)
}

// Save persists the settings, creating the file on first save.
func Save(s Settings, path string) error {
	data, err := json.MarshalIndent(normalize(s), "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// normalize repairs out-of-range values instead of rejecting the file.
func normalize(s Settings) Settings {
	def := Default()
	if s.MinSeconds <= 0 {
		s.MinSeconds = def.MinSeconds
	}
	if s.MaxSeconds <= 0 {
		s.MaxSeconds = def.MaxSeconds
	}
	if s.MinSeconds > s.MaxSeconds {
		s.MinSeconds, s.MaxSeconds = s.MaxSeconds, s.MinSeconds
	}
	if s.Volume < 0 {
		s.Volume = 0
	}
	if s.Volume > 100 {
		s.Volume = 100
	}
	return s
}
