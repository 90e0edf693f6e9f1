package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/carcontrol"
	"github.com/SeamusWaldron/carcontrol/internal/recorder"
)

var sendDevice string

var sendCmd = &cobra.Command{
	Use:   "send <direction>",
	Short: "Send a single direction to the car",
	Long: `Connect, send one direction and disconnect.

The direction is one of forward, backward, left, right or rotate (any
case). The device is --device, else the last connected device, else the
first device found by a scan.`,
	Example: `  carcontrol send forward
  carcontrol send rotate --device 98:D3:31:F5:12:34`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendDevice, "device", "d", "", "Device address")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	dir, err := carcontrol.ParseDirection(args[0])
	if err != nil {
		return err
	}
	if !dir.Transmittable() {
		return fmt.Errorf("%w: %s", carcontrol.ErrUnknownDirection, args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)
	ctx := cmd.Context()

	ctrl, link, err := openController(cfg, logger, carcontrol.WithScanOnStart(false))
	if err != nil {
		return err
	}
	defer func() {
		closeController(ctx, ctrl, link, logger)
		printLogs(os.Stdout, ctrl.Logs())
	}()

	stateFile, err := recorder.NewDefaultStateFile()
	if err != nil {
		logger.Warn("state file unavailable", "error", err)
		stateFile = nil
	}

	if err := ctrl.Scan(ctx); err != nil {
		return err
	}

	dev, err := pickDevice(ctrl.State().Devices, sendDevice, stateFile, link.Name())
	if err != nil {
		return err
	}

	if err := ctrl.Connect(ctx, dev); err != nil {
		return err
	}
	if stateFile != nil {
		if err := stateFile.SetLastDevice(dev, link.Name()); err != nil {
			logger.Warn("failed to save last device", "error", err)
		}
	}

	return ctrl.Send(ctx, dir)
}

// pickDevice chooses the target: an explicit address, the last device,
// then the first listed device. An explicit address that was not listed
// is still tried, named by its address.
func pickDevice(devices []carcontrol.Device, address string, sf *recorder.StateFile, transport string) (carcontrol.Device, error) {
	if address != "" {
		for _, d := range devices {
			if d.Address == address {
				return d, nil
			}
		}
		return carcontrol.Device{Name: address, Address: address}, nil
	}

	if sf != nil {
		if last, ok := sf.LastDevice(transport); ok {
			for _, d := range devices {
				if d.Address == last.Address {
					return d, nil
				}
			}
		}
	}

	if len(devices) == 0 {
		return carcontrol.Device{}, fmt.Errorf("%w: no devices found", carcontrol.ErrDeviceNotFound)
	}
	return devices[0], nil
}
