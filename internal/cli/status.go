package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/carcontrol/internal/bluez"
	"github.com/SeamusWaldron/carcontrol/internal/config"
	"github.com/SeamusWaldron/carcontrol/internal/recorder"
	"github.com/SeamusWaldron/carcontrol/internal/serial"
	"github.com/SeamusWaldron/carcontrol/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, radio state and history",
	Long:  `Display the active configuration, the last connected device, whether the radio is on, and how many drive sessions have been recorded.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	fmt.Println("carcontrol Status")
	fmt.Println("=================")
	fmt.Println()

	fmt.Printf("Transport: %s\n", cfg.Transport)
	switch cfg.Transport {
	case config.TransportClassic:
		if cfg.RFCOMM.Channel == 0 {
			fmt.Printf("RFCOMM: probing channels 1-%d\n", cfg.RFCOMM.MaxChannel)
		} else {
			fmt.Printf("RFCOMM: channel %d\n", cfg.RFCOMM.Channel)
		}
	case config.TransportBLE:
		fmt.Printf("BLE scan: %s\n", cfg.BLE.ScanTimeout)
	}
	fmt.Printf("Recording: %v\n", cfg.Record)
	fmt.Printf("Database: %s\n", cfg.DBPath)
	fmt.Printf("Logs: %s\n", cfg.LogDir)
	fmt.Println()

	// Radio
	link, err := serial.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer link.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	enabled, err := link.IsEnabled(ctx)
	switch {
	case err != nil:
		fmt.Printf("Radio: unavailable (%v)\n", err)
	case enabled:
		fmt.Println("Radio: on")
	default:
		fmt.Println("Radio: off")
	}

	if cfg.Transport == config.TransportClassic {
		rf, err := bluez.ReadRfkill(bluez.RfkillRoot)
		if err == nil && rf.Found {
			fmt.Printf("Rfkill: soft=%v hard=%v\n", rf.SoftBlocked, rf.HardBlocked)
		}
	}
	fmt.Println()

	// Last device
	stateFile, err := recorder.NewDefaultStateFile()
	if err == nil {
		state := stateFile.State()
		if state.LastDeviceAddress != "" {
			fmt.Printf("Last device: %s (%s) via %s\n", state.LastDeviceName, state.LastDeviceAddress, state.LastTransport)
		} else {
			fmt.Println("No device history")
		}
	}

	// History
	if _, err := os.Stat(cfg.DBPath); err != nil {
		fmt.Println("No recorded sessions")
		return nil
	}
	db, err := storage.Open(cfg.DBPath)
	if err == nil {
		defer db.Close()
		if err := db.MigrateUp(); err == nil {
			repo := storage.NewSessionRepository(db)
			count, _ := repo.Count()
			fmt.Printf("Recorded sessions: %d\n", count)
			if sessions, _ := repo.List(1); len(sessions) > 0 {
				fmt.Printf("Last session: %s\n", sessions[0].StartedAt.Local().Format(time.RFC3339))
			}
		}
	}

	return nil
}
