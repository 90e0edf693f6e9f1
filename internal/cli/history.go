package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/carcontrol"
	"github.com/SeamusWaldron/carcontrol/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded drive sessions",
	Long:  `List drive sessions recorded with record: true, newest first, with the number of commands sent in each direction.`,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of sessions to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		fmt.Println("No recorded sessions. Set record: true in the config to keep history.")
		return nil
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.MigrateUp(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	sessions, err := storage.NewSessionRepository(db).List(historyLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No recorded sessions.")
		return nil
	}

	events := storage.NewEventRepository(db)
	for _, s := range sessions {
		counts, err := events.CommandCounts(s.SessionID)
		if err != nil {
			return err
		}
		fmt.Println(formatSession(s, counts))
	}
	return nil
}

func formatSession(s storage.Session, counts map[string]int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s  %s", s.SessionID[:8], s.StartedAt.Local().Format("2006-01-02 15:04"), s.Transport)
	if s.DeviceName != nil {
		fmt.Fprintf(&b, "  %s", *s.DeviceName)
	}
	if s.DurationMs != nil {
		fmt.Fprintf(&b, "  %s", (time.Duration(*s.DurationMs) * time.Millisecond).Round(time.Second))
	} else {
		b.WriteString("  (open)")
	}

	var parts []string
	total := 0
	for _, d := range carcontrol.Directions {
		if n := counts[d.String()]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s%d", d.Glyph(), n))
			total += n
		}
	}
	fmt.Fprintf(&b, "  %d commands", total)
	if len(parts) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, " "))
	}
	return b.String()
}
