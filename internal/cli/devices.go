package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/carcontrol"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices the car can be reached through",
	Long: `Scan with the configured transport and print the devices found.

For the classic transport these are the paired devices known to BlueZ.
For ble they are nearby UART peripherals.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	ctrl, link, err := openController(cfg, logger, carcontrol.WithScanOnStart(false))
	if err != nil {
		return err
	}
	defer closeController(cmd.Context(), ctrl, link, logger)

	if err := ctrl.Scan(cmd.Context()); err != nil {
		printLogs(os.Stderr, ctrl.Logs())
		return err
	}

	devices := ctrl.State().Devices
	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return nil
	}

	fmt.Printf("%-20s  %s\n", "ADDRESS", "NAME")
	for _, d := range devices {
		fmt.Printf("%-20s  %s\n", d.Address, d.Label())
	}
	return nil
}
