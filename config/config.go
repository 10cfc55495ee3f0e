package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jsphweid/levelup/music"
	"github.com/jsphweid/levelup/theory"
	"gopkg.in/yaml.v3"
)

// Loop is one ambient loop: where it's rooted, how slowly it plays and
// which MIDI channel it plays on.
type Loop struct {
	Name    string  `yaml:"name"`
	Root    string  `yaml:"root"`
	Tempo   float64 `yaml:"tempo"`
	Channel uint8   `yaml:"channel"`
	Volume  float64 `yaml:"volume"`
}

type Voice struct {
	Channel uint8   `yaml:"channel"`
	Volume  float64 `yaml:"volume"`
}

type MIDI struct {
	Out string `yaml:"out"`
	In  string `yaml:"in"`
}

type Config struct {
	// Scale to start with. Empty picks one at random.
	Scale  string `yaml:"scale"`
	Chords bool   `yaml:"chords"`
	Rearm  bool   `yaml:"rearm"`
	// Debounce is how long volume changes settle before they apply.
	Debounce time.Duration `yaml:"debounce"`
	Loops    []Loop        `yaml:"loops"`
	Chord    Voice         `yaml:"chord"`
	User     Voice         `yaml:"user"`
	MIDI     MIDI          `yaml:"midi"`
}

func Default() Config {
	return Config{
		Debounce: 100 * time.Millisecond,
		Loops: []Loop{
			{Name: "bass", Root: "D3", Tempo: 30, Channel: 0, Volume: -25},
			{Name: "mid", Root: "D4", Tempo: 4, Channel: 1, Volume: -30},
		},
		Chord: Voice{Channel: 2, Volume: -30},
		User:  Voice{Channel: 3, Volume: -10},
	}
}

// Parse reads YAML over the defaults. A loops list replaces the default
// loops entirely.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("could not parse config: %w", err)
	}
	return c, c.Validate()
}

// Load reads the config at path. An empty path gives the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		c := Default()
		return c, c.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config: %w", err)
	}
	return Parse(data)
}

func (c Config) Validate() error {
	if len(c.Loops) == 0 {
		return errors.New("config needs at least one loop")
	}
	if c.Scale != "" && !theory.HasScale(c.Scale) {
		return fmt.Errorf("unknown scale %q", c.Scale)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %v", c.Debounce)
	}
	for i, l := range c.Loops {
		if _, err := theory.ParsePitch(l.Root); err != nil {
			return fmt.Errorf("loop %d (%s): %w", i, l.Name, err)
		}
		if err := music.CheckTempo(l.Tempo); err != nil {
			return fmt.Errorf("loop %d (%s): %w", i, l.Name, err)
		}
		if err := checkChannel(l.Channel); err != nil {
			return fmt.Errorf("loop %d (%s): %w", i, l.Name, err)
		}
	}
	if err := checkChannel(c.Chord.Channel); err != nil {
		return fmt.Errorf("chord voice: %w", err)
	}
	if err := checkChannel(c.User.Channel); err != nil {
		return fmt.Errorf("user voice: %w", err)
	}
	return nil
}

func checkChannel(ch uint8) error {
	if ch > 15 {
		return fmt.Errorf("midi channel %d is out of range", ch)
	}
	return nil
}

func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
