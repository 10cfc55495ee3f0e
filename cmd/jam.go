package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jsphweid/levelup/broadcast"
	"github.com/jsphweid/levelup/config"
	"github.com/jsphweid/levelup/constants"
	"github.com/jsphweid/levelup/instrument"
	"github.com/jsphweid/levelup/jam"
	"github.com/jsphweid/levelup/midi"
	"github.com/jsphweid/levelup/model"
	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
)

var (
	jamServer string
	jamOut    string
	jamIn     string
	jamAlone  bool
	jamChords bool
)

func init() {
	jamCmd.Flags().StringVar(&jamServer, "server", constants.GetServerURL(), "levelup server to share notes through")
	jamCmd.Flags().BoolVar(&jamAlone, "alone", false, "don't connect to a server")
	jamCmd.Flags().StringVar(&jamOut, "out", "", "midi out port to play on (default from config, else log notes)")
	jamCmd.Flags().StringVar(&jamIn, "in", "", "midi in port to play the surface with (default from config)")
	jamCmd.Flags().BoolVar(&jamChords, "chords", false, "start with the chord voice on")
	rootCmd.AddCommand(jamCmd)
}

var jamCmd = &cobra.Command{
	Use:   "jam",
	Short: "Plays the loops and joins the shared channel",
	Long: `Plays the ambient loops on a MIDI output and joins the shared channel.
Keys on the MIDI input play notes over the loops: which key and how hard
pick the note, how long it's held stretches it. Everyone else's notes play
here too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		defer gomidi.CloseDriver()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if jamOut != "" {
			cfg.MIDI.Out = jamOut
		}
		if jamIn != "" {
			cfg.MIDI.In = jamIn
		}
		if cmd.Flags().Changed("chords") {
			cfg.Chords = jamChords
		}
		return runJam(ctx, cfg)
	},
}

type voices struct {
	loops []instrument.Instrument
	chord instrument.Instrument
	user  instrument.Instrument
	outs  []*midi.Instrument
}

// close silences every MIDI channel the voices play on.
func (v voices) close(logger *log.Logger) {
	for _, out := range v.outs {
		if err := out.Close(); err != nil {
			logger.Warn("could not silence midi out", "err", err)
		}
	}
}

func openVoices(cfg config.Config, logger *log.Logger) (voices, error) {
	var v voices
	if cfg.MIDI.Out == "" {
		logger.Info("no midi out, logging notes instead")
		for _, l := range cfg.Loops {
			v.loops = append(v.loops, instrument.NewLogger(l.Name, l.Volume, logger))
		}
		v.chord = instrument.NewLogger("chord", cfg.Chord.Volume, logger)
		v.user = instrument.NewLogger("user", cfg.User.Volume, logger)
		return v, nil
	}

	send, err := midi.OpenOut(cfg.MIDI.Out)
	if err != nil {
		return v, err
	}
	// at debug level every voice also reports its notes
	open := func(name string, channel uint8, db float64) instrument.Instrument {
		out := midi.NewInstrument(send, channel, db, logger)
		v.outs = append(v.outs, out)
		if logger.GetLevel() > log.DebugLevel {
			return out
		}
		return instrument.Multi{out, instrument.NewLogger(name, db, logger)}
	}
	for _, l := range cfg.Loops {
		v.loops = append(v.loops, open(l.Name, l.Channel, l.Volume))
	}
	v.chord = open("chord", cfg.Chord.Channel, cfg.Chord.Volume)
	v.user = open("user", cfg.User.Channel, cfg.User.Volume)
	return v, nil
}

func joinChannel(ctx context.Context, logger *log.Logger) (*broadcast.Bridge, error) {
	remote, err := broadcast.NewRemote(jamServer, logger)
	if err != nil {
		return nil, err
	}
	session, err := remote.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not join %s: %w", jamServer, err)
	}
	logger.Info("joined", "server", jamServer, "channel", session.Channel, "user", session.UserID)
	return broadcast.NewBridge(session.UserID, remote, logger), nil
}

func runJam(ctx context.Context, cfg config.Config) error {
	logger := log.FromContext(ctx)
	v, err := openVoices(cfg, logger)
	if err != nil {
		return err
	}
	defer v.close(logger)

	var bridge *broadcast.Bridge
	if !jamAlone {
		bridge, err = joinChannel(ctx, logger)
		if err != nil {
			return err
		}
	}

	session, err := jam.New(jam.Options{
		Config: cfg,
		Loops:  v.loops,
		Chord:  v.chord,
		User:   v.user,
		Bridge: bridge,
		OnActive: func(n model.Note, shade string) {
			logger.Debug("active", "note", n.Pitch, "shade", shade)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	if cfg.MIDI.In != "" {
		gestures := midi.NewGestures(session.Surface(midi.KeyboardRect), session.SetVolume)
		gestures.OnPedal = func() {
			session.ToggleChords()
			logger.Info("chords", "enabled", session.ChordsEnabled())
		}
		stopListening, err := midi.Listen(cfg.MIDI.In, gestures)
		if err != nil {
			return err
		}
		defer stopListening()
	}

	if err := session.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("stopping, letting notes ring out")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.RingOut)
	defer cancel()
	if err := session.Shutdown(shutdownCtx); err != nil {
		logger.Warn("cut notes short", "err", err)
	}
	return nil
}
