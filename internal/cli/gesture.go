package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/carcontrol"
)

var gestureCmd = &cobra.Command{
	Use:   "gesture <dx> <dy>",
	Short: "Show how a drag delta maps to a direction",
	Long: `Print the stick readout for a drag of (dx, dy): the direction the
drag selects and the rotation angle it describes. Nothing is sent.`,
	Example: `  carcontrol gesture 10 2
  carcontrol gesture -- -3 -40`,
	Args: cobra.ExactArgs(2),
	RunE: runGesture,
}

func init() {
	rootCmd.AddCommand(gestureCmd)
}

func runGesture(cmd *cobra.Command, args []string) error {
	dx, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid dx %q: %w", args[0], err)
	}
	dy, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid dy %q: %w", args[1], err)
	}

	stick := carcontrol.NewStick()
	stick.Drag(dx, dy)
	stick.Rotate(dx, dy)
	fmt.Fprintln(cmd.OutOrStdout(), stick.String())
	return nil
}
