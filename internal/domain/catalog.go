package domain

// SoundID references an entry of the sound catalog.
type SoundID string

// Sound is one playable clip.
type Sound struct {
	ID          SoundID
	DisplayName string
	Locator     string
}

// Catalog is the fixed, process-wide list of sounds.
type Catalog struct {
	sounds []Sound
}

// NewCatalog copies sounds into an immutable catalog.
func NewCatalog(sounds ...Sound) Catalog {
	cp := make([]Sound, len(sounds))
	copy(cp, sounds)
	return Catalog{sounds: cp}
}

// DefaultCatalog returns the two clips shipped with the alarm.
func DefaultCatalog() Catalog {
	return NewCatalog(
		Sound{ID: "chime", DisplayName: "Break chime", Locator: "break.mp3"},
		Sound{ID: "alarm", DisplayName: "End of work", Locator: "endwork.mp3"},
	)
}

// Lookup resolves id.
func (c Catalog) Lookup(id SoundID) (Sound, bool) {
	for _, s := range c.sounds {
		if s.ID == id {
			return s, true
		}
	}
	return Sound{}, false
}

// First returns the first entry, used for defaults.
func (c Catalog) First() Sound {
	if len(c.sounds) == 0 {
		return Sound{}
	}
	return c.sounds[0]
}

// All returns a copy of the catalog entries.
func (c Catalog) All() []Sound {
	cp := make([]Sound, len(c.sounds))
	copy(cp, c.sounds)
	return cp
}
