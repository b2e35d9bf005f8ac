package commands

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soundpilot/soundpilot/internal/classify"
)

var labelsCmd = &cobra.Command{
	Use:   "labels <user>",
	Short: "List a user's enrolled commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}

		info, err := rt.svc.Info(cmd.Context(), args[0])
		if errors.Is(err, classify.ErrNoProfile) {
			return fmt.Errorf("no profile for %q", args[0])
		}
		if err != nil {
			return err
		}

		fmt.Println(styleTitle.Render(info.User) + styleDim.Render(fmt.Sprintf("  (profile v%d)", info.Version)))
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tEXAMPLES\tACTION")
		for _, li := range info.Labels {
			action := li.ActionID
			if action == "" {
				action = "-"
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", li.Label, li.Examples, action)
		}
		return tw.Flush()
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List all users with stored profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}

		users, err := rt.svc.Users(cmd.Context())
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println(styleDim.Render("no users enrolled"))
			return nil
		}
		for _, u := range users {
			fmt.Println(u)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(labelsCmd)
	rootCmd.AddCommand(usersCmd)
}
