package constants

import (
	"os"
	"time"
)

func GetAddr() string {
	addr := os.Getenv("LEVELUP_ADDR")
	if addr != "" {
		return addr
	}
	return ":8080"
}

func GetServerURL() string {
	url := os.Getenv("LEVELUP_SERVER")
	if url != "" {
		return url
	}
	return "http://localhost:8080"
}

// GetSecret returns the key used to sign the identity cookie. An empty
// value makes the server generate a random key on startup, which logs
// everyone out on every restart.
func GetSecret() string {
	return os.Getenv("LEVELUP_SECRET")
}

func GetConfigPath() string {
	return os.Getenv("LEVELUP_CONFIG")
}

func GetLogLevel() string {
	level := os.Getenv("LEVELUP_LOG_LEVEL")
	if level != "" {
		return level
	}
	return "info"
}

// pub/sub naming shared by server and clients
const (
	Channel         = "level-up"
	NotePlayedEvent = "note_played"
	CookieName      = "userId"
)

// note generation
const (
	MinNoteDuration = 10
	MaxNoteDuration = 39
	NoteSpacing     = 8
)

// ReleaseTail stretches a performed note's wait past its attack-release so
// the release finishes before the next note starts.
const ReleaseTail = 1.125

// IdleInterval is how often a loop with an empty scale comes back to ask
// for a new one.
const IdleInterval = time.Second

const UserNoteLength = 50

// MaxNoteSeconds bounds the duration and the delay of any note a player
// sends.
const MaxNoteSeconds = 60

// RingOut is how long a stopping jam lets sounding notes finish.
const RingOut = 15 * time.Second

const ChordVolumeOffset = -10
