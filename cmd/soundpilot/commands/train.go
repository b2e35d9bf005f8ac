package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundpilot/soundpilot/internal/classify"
	"github.com/soundpilot/soundpilot/internal/ident"
)

var trainCmd = &cobra.Command{
	Use:   "train <user>",
	Short: "Retrain a user's model from all stored examples",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}

		res, err := rt.svc.Train(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(renderTrain(res))
		return nil
	},
}

var deleteLabelCmd = &cobra.Command{
	Use:   "delete-label <user> <label>",
	Short: "Remove a command, its stored audio, and its binding",
	Long: `Remove every example of a label, its stored audio files, and its
action binding, then retrain the remaining labels. When enough examples no
longer remain, the stale model bundle is removed too.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}

		res, err := rt.svc.DeleteLabel(cmd.Context(), args[0], args[1])
		if errors.Is(err, classify.ErrNoProfile) {
			return fmt.Errorf("no profile for %q", args[0])
		}
		if err != nil {
			return err
		}

		if res.RemovedExamples == 0 {
			fmt.Println(styleWarn.Render("nothing removed") + styleDim.Render("  no examples of "+res.Label))
			suggestLabel(cmd.Context(), rt, res.User, args[1])
			return nil
		}
		fmt.Printf("%s %d example(s) of %s\n",
			styleOK.Render("removed"), res.RemovedExamples, styleTitle.Render(res.User+"/"+res.Label))
		fmt.Println(renderTrain(res.Train))
		return nil
	},
}

// suggestLabel prints the nearest existing label when the requested one had
// no examples.
func suggestLabel(ctx context.Context, rt *runtime, user, requested string) {
	info, err := rt.svc.Info(ctx, user)
	if err != nil {
		return
	}
	var labels []string
	for _, li := range info.Labels {
		labels = append(labels, li.Label)
	}
	if near, _, ok := ident.NewMatcher().Suggest(requested, labels); ok {
		fmt.Println(styleDim.Render("did you mean " + near + "?"))
	}
}

var resetCmd = &cobra.Command{
	Use:   "reset <user>",
	Short: "Delete a user's profile, audio, and model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}

		if err := rt.svc.Reset(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println(styleOK.Render("reset ") + args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(deleteLabelCmd)
	rootCmd.AddCommand(resetCmd)
}
