package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundpilot/soundpilot/internal/classify"
	"github.com/soundpilot/soundpilot/internal/ident"
	"github.com/soundpilot/soundpilot/internal/trigger"
	"github.com/soundpilot/soundpilot/pkg/audio"
)

var flagClassifyTrigger bool

var classifyCmd = &cobra.Command{
	Use:   "classify <user> <wav-file>",
	Short: "Classify one WAV capture against a user's trained model",
	Long: `Classify a WAV recording against the user's trained model.

Prints the decided command (or UNKNOWN when confidence is too low) and the
full probability ranking. With --trigger, the action bound to the decided
command is fired via the configured Home Assistant instance.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}

		src := audio.FileSource{Path: args[1], TargetRate: rt.extractor.SampleRate()}
		wave, err := src.Record(cmd.Context())
		if err != nil {
			return err
		}

		cls, err := rt.svc.Classify(cmd.Context(), args[0], wave)
		if errors.Is(err, classify.ErrNoModel) {
			return fmt.Errorf("no trained model for %q; enroll at least two examples first", args[0])
		}
		if err != nil {
			return err
		}

		fmt.Print(renderDecision(cls))

		if cls.Label != classify.LabelUnknown && cls.ActionID == "" {
			suggestBinding(cmd.Context(), rt, args[0], cls.Label)
		}

		if flagClassifyTrigger && cls.ActionID != "" {
			trig := buildTrigger(rt)
			if err := trig.Fire(cmd.Context(), args[0], cls.Label, cls.ActionID); err != nil {
				return err
			}
			fmt.Println(styleOK.Render("triggered ") + cls.ActionID)
		}
		return nil
	},
}

// buildTrigger returns the Home Assistant trigger when configured, and the
// log-only fallback otherwise.
func buildTrigger(rt *runtime) trigger.Trigger {
	ha := rt.cfg.HomeAssistant
	if ha.BaseURL == "" {
		return trigger.LogOnly{}
	}
	return trigger.NewBreaker(
		trigger.NewHomeAssistant(ha.BaseURL, ha.Token, ha.Timeout, rt.metrics),
		trigger.BreakerConfig{},
	)
}

// suggestBinding points at the nearest label that does carry an action when
// the decided one has no binding.
func suggestBinding(ctx context.Context, rt *runtime, user, label string) {
	info, err := rt.svc.Info(ctx, user)
	if err != nil {
		return
	}
	var bound []string
	for _, li := range info.Labels {
		if li.ActionID != "" && li.Label != label {
			bound = append(bound, li.Label)
		}
	}
	if len(bound) == 0 {
		fmt.Println(styleDim.Render("no action bound to " + label + "; bind one with enroll --action"))
		return
	}
	if near, _, ok := ident.NewMatcher().Suggest(label, bound); ok {
		fmt.Println(styleDim.Render(fmt.Sprintf("no action bound to %s; did you mean %s?", label, near)))
	} else {
		fmt.Println(styleDim.Render("no action bound to " + label))
	}
}

func init() {
	classifyCmd.Flags().BoolVar(&flagClassifyTrigger, "trigger", false, "fire the bound action after a confident match")
	rootCmd.AddCommand(classifyCmd)
}
