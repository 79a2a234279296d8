package compositor

import (
	"time"

	"github.com/ilixi/ilixi-sub001/internal/domain/window"
)

// AnimProps selects which view properties a show or hide animates
type AnimProps uint8

const (
	AnimOpacity AnimProps = 1 << iota
	AnimZoom
	AnimPosition
)

// Has reports whether all bits of p are set
func (a AnimProps) Has(p AnimProps) bool {
	return a&p == p
}

// Settings are the runtime-tunable compositor options
type Settings struct {
	Animations    bool
	ShowProps     AnimProps
	ShowDuration  time.Duration
	HideProps     AnimProps
	HideDuration  time.Duration
	SlideDuration time.Duration
	SyncGrace     time.Duration
}

// DefaultSettings returns the stock animation setup
func DefaultSettings() Settings {
	return Settings{
		Animations:    true,
		ShowProps:     AnimOpacity | AnimZoom,
		ShowDuration:  300 * time.Millisecond,
		HideProps:     AnimOpacity | AnimZoom,
		HideDuration:  300 * time.Millisecond,
		SlideDuration: 400 * time.Millisecond,
		SyncGrace:     500 * time.Millisecond,
	}
}

func (s Settings) showDuration() time.Duration {
	if !s.Animations {
		return 0
	}
	return s.ShowDuration
}

func (s Settings) hideDuration() time.Duration {
	if !s.Animations {
		return 0
	}
	return s.HideDuration
}

func (s Settings) slideDuration() time.Duration {
	if !s.Animations {
		return 0
	}
	return s.SlideDuration
}

// Config is everything the compositor needs at construction
type Config struct {
	Geometry window.Geometry
	Settings Settings
	// OSKApp names the catalog entry started on demand by ShowOSK. When
	// empty the first definition flagged osk is used.
	OSKApp string
}
