package domain

// KeyValueStore is a secondary port that persists opaque values by key.
// Implementations map their own failures onto ErrStorageFull and
// ErrStorageUnavailable. Get reports found=false for a missing key.
type KeyValueStore interface {
	Get(key string) (value []byte, found bool, err error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Persisted keys.
const (
	KeySchedules = "schedules"
	KeyVolume    = "volume"
)

// AudioDevice is a secondary port for the single playback output.
// OnEnded fires once per natural end of the current source; OnError fires on
// asynchronous decode or output failures.
type AudioDevice interface {
	// Unlock prepares the output; it is the equivalent of a user gesture.
	Unlock() error
	SetSource(locator string) error
	// Play starts the current source and returns once playback has begun.
	Play() error
	// Restart rewinds the current source to position zero and plays it.
	Restart() error
	Pause()
	Paused() bool
	SetVolume(v float64)
	Volume() float64
	OnEnded(func())
	OnError(func(error))
}

// PowerLock is a held wake lock.
type PowerLock interface {
	Release() error
}

// PowerManager acquires wake locks. It is optional; errors never block arming.
type PowerManager interface {
	Acquire(reason string) (PowerLock, error)
}
