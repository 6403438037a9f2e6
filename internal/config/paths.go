package config

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the slotchat base directory.
const HomeEnv = "SLOTCHAT_HOME"

// Paths is the on-disk layout under the base directory.
type Paths struct {
	Base   string // ~/.slotchat
	Config string // config.yaml
	Data   string // relay database
	Logs   string
}

// ResolvePaths lays out paths under $SLOTCHAT_HOME, or ~/.slotchat.
func ResolvePaths() (Paths, error) {
	base := os.Getenv(HomeEnv)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, ".slotchat")
	}
	return PathsAt(base), nil
}

// PathsAt lays out paths under base.
func PathsAt(base string) Paths {
	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
		Logs:   filepath.Join(base, "logs"),
	}
}

// RelayDatabase is where `relay run` keeps history unless relay.database is set.
func (p Paths) RelayDatabase() string {
	return filepath.Join(p.Data, "relay.db")
}

// EnsureDirs creates the base, data and log directories.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
