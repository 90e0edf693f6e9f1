// Package carcontrol drives a Bluetooth remote-control car from a joystick.
//
// The car's controller listens on a Bluetooth serial link and accepts bare
// text commands: the label of the pressed direction ("Forward", "Backward",
// "Left", "Right", "Rotate"), with no delimiter or framing.
//
// # Quick Start
//
// Wire a Controller to a Serial transport and press buttons:
//
//	ctrl := carcontrol.NewController(link, perms)
//	defer ctrl.Close(ctx)
//
//	ctrl.Scan(ctx)
//	devices := ctrl.State().Devices
//	if err := ctrl.Connect(ctx, devices[0]); err != nil {
//	    log.Fatal(err)
//	}
//
//	ctrl.Press(ctx, carcontrol.Forward)
//
//	for _, line := range ctrl.State().Logs {
//	    fmt.Println(line)
//	}
//
// # State
//
// All controller state lives in a single State value. Bluetooth calls are
// effects: their outcomes are turned into Events and folded into the state
// by Reduce. Subscribers see every new State after each update.
//
// # Gestures
//
// Stick maps drag deltas to a Direction and a rotation angle. It is a
// readout only and never transmits.
package carcontrol
