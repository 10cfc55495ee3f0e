package cmd

import (
	"fmt"
	"strings"

	"github.com/jsphweid/levelup/chord"
	"github.com/jsphweid/levelup/theory"
	"github.com/spf13/cobra"
)

var scalesRoot string

func init() {
	scalesCmd.Flags().StringVar(&scalesRoot, "root", "D4", "pitch to spell scales from")
	rootCmd.AddCommand(scalesCmd)
}

var scalesCmd = &cobra.Command{
	Use:   "scales [scale name]",
	Short: "Lists scales, or spells one",
	Long: `Without arguments, lists every scale the loops can pick. With a scale
name, spells it from --root and lists the chords the chord voice can draw
from it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			for _, name := range theory.ScaleNames() {
				fmt.Fprintln(out, name)
			}
			return nil
		}
		return inspect(cmd, args[0])
	},
}

func inspect(cmd *cobra.Command, name string) error {
	notes, err := theory.ScaleNotes(scalesRoot, name)
	if err != nil {
		return err
	}
	chords, err := chord.ForScale(name)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "notes: %s\n", strings.Join(notes, " "))
	for _, c := range chords {
		spelled, err := chord.Notes(c, scalesRoot)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "chord %s: %s\n", c, strings.Join(spelled, " "))
	}
	return nil
}
