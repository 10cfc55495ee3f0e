package cmd

import (
	"fmt"
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/jsphweid/levelup/looper"
	"github.com/jsphweid/levelup/midi"
	"github.com/jsphweid/levelup/music"
	"github.com/jsphweid/levelup/theory"
	"github.com/spf13/cobra"
)

var (
	recordCycles int
	recordScale  string
	recordSeed   int64
	recordRearm  bool
)

func init() {
	recordCmd.Flags().IntVar(&recordCycles, "cycles", 4, "cycles to render per loop")
	recordCmd.Flags().StringVar(&recordScale, "scale", "", "scale to start on (default from config, else random)")
	recordCmd.Flags().Int64Var(&recordSeed, "seed", 0, "random seed (0 is time based)")
	recordCmd.Flags().BoolVar(&recordRearm, "rearm", false, "time each cycle by its own runtime")
	rootCmd.AddCommand(recordCmd)
}

var recordCmd = &cobra.Command{
	Use:   "record <file.mid>",
	Short: "Renders the loops to a MIDI file",
	Long: `Renders the first cycles of every configured loop to a Standard MIDI
File, one channel per loop, without playing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if recordScale != "" {
			cfg.Scale = recordScale
		}
		if cmd.Flags().Changed("rearm") {
			cfg.Rearm = recordRearm
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var src rand.Source
		if recordSeed != 0 {
			src = rand.NewSource(recordSeed)
		}
		sel := music.NewSelector(src)
		names := theory.ScaleNames()
		pick := func() string { return names[sel.Intn(len(names))] }
		scale := cfg.Scale
		if scale == "" {
			scale = pick()
		}

		logger := log.FromContext(cmd.Context())
		rec := midi.NewRecorder()
		for _, l := range cfg.Loops {
			plan, err := looper.Plan(looper.Options{
				Root:       l.Root,
				Scale:      scale,
				Tempo:      l.Tempo,
				Selector:   sel,
				OnComplete: pick,
				Rearm:      cfg.Rearm,
			}, recordCycles)
			if err != nil {
				return fmt.Errorf("loop %s: %w", l.Name, err)
			}
			ch := rec.Channel(l.Channel, l.Volume)
			for _, tn := range plan {
				if err := ch.PlayAt(tn.At, tn.Note.Pitch, tn.Note.DurationTime()); err != nil {
					return err
				}
			}
			logger.Info("rendered", "loop", l.Name, "notes", len(plan))
		}

		if err := rec.WriteFile(args[0]); err != nil {
			return err
		}
		logger.Info("wrote", "file", args[0], "scale", scale, "messages", rec.Len())
		return nil
	},
}
