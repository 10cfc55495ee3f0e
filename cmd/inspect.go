package cmd

import (
	"fmt"

	"github.com/jsphweid/levelup/midi"
	"github.com/spf13/cobra"
)

var (
	inspectFrom uint64
	inspectMax  int
)

func init() {
	inspectCmd.Flags().Uint64Var(&inspectFrom, "from", 0, "tick to start at")
	inspectCmd.Flags().IntVar(&inspectMax, "max", 10, "note events to show per track")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Inspects a recording",
	Long:  `Prints the first note events of every track in a MIDI file, such as one made by record.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := midi.ReadMidiFile(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "tracks: %d, time format: %v\n", len(s.Tracks), s.TimeFormat)
		for _, ev := range midi.Excerpt(s, inspectFrom, inspectMax) {
			state := "off"
			if ev.On {
				state = "on"
			}
			fmt.Fprintf(out, "track %d tick %d ch %d key %d vel %d %s\n",
				ev.Track, ev.Tick, ev.Channel, ev.Key, ev.Vel, state)
		}
		return nil
	},
}
