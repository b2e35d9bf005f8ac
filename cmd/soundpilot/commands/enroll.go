package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soundpilot/soundpilot/pkg/audio"
)

var flagEnrollAction string

var enrollCmd = &cobra.Command{
	Use:   "enroll <user> <label> <wav-file-or-dir>...",
	Short: "Enroll WAV examples of a spoken command",
	Long: `Enroll one or more WAV recordings as examples of a command.

Arguments naming a directory enroll every .wav file inside it. User and
label are normalised to lowercase [a-z0-9_] identifiers, so "Lights On!"
and "lights_on" are the same command.

After enrolling, the user's model is retrained automatically. Training
needs at least two examples in total.

Examples:
  soundpilot enroll alice lights_on samples/lights/*.wav --action script.lights_on
  soundpilot enroll alice fan_off recordings/fan/`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}

		paths, err := collectWAVs(args[2:])
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no .wav files found in %s", strings.Join(args[2:], ", "))
		}

		sources := make([]audio.Source, len(paths))
		for i, p := range paths {
			sources[i] = audio.FileSource{Path: p, TargetRate: rt.extractor.SampleRate()}
		}

		res, err := rt.svc.Enroll(cmd.Context(), args[0], args[1], flagEnrollAction, sources)
		if err != nil {
			return err
		}

		fmt.Printf("%s %d example(s) of %s\n",
			styleOK.Render("enrolled"), len(res.Samples), styleTitle.Render(res.User+"/"+res.Label))
		for _, s := range res.Samples {
			if s.Quiet {
				fmt.Println(styleWarn.Render("  warning:") + styleDim.Render(
					fmt.Sprintf(" %s is very quiet (rms %.5f)", filepath.Base(s.Path), s.RMS)))
			}
		}
		fmt.Println(renderTrain(res.Train))
		if res.TrainErr != "" {
			fmt.Println(styleErr.Render("training failed: ") + res.TrainErr)
		}
		return nil
	},
}

// collectWAVs expands directory arguments into the .wav files they contain.
func collectWAVs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", arg, err)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read dir %q: %w", arg, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
				continue
			}
			out = append(out, filepath.Join(arg, e.Name()))
		}
	}
	return out, nil
}

func init() {
	enrollCmd.Flags().StringVarP(&flagEnrollAction, "action", "a", "", "action id to bind to the label (e.g. script.lights_on)")
	rootCmd.AddCommand(enrollCmd)
}
