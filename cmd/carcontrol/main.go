// carcontrol - terminal joystick for a Bluetooth remote-control car.
package main

import (
	"github.com/SeamusWaldron/carcontrol/internal/cli"
)

func main() {
	cli.Execute()
}
