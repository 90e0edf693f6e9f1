package bluez

import (
	"os"
	"path/filepath"
	"strings"
)

// RfkillRoot is where the kernel exposes rfkill switches.
const RfkillRoot = "/sys/class/rfkill"

// RfkillState is the block state of the Bluetooth radios.
type RfkillState struct {
	Found       bool // at least one bluetooth switch exists
	SoftBlocked bool // blocked by software; can be lifted by powering on
	HardBlocked bool // blocked by a physical switch
}

// ReadRfkill reads every bluetooth switch under root. Any blocked switch
// marks the state as blocked.
func ReadRfkill(root string) (RfkillState, error) {
	var st RfkillState
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, err
	}

	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		if readTrim(filepath.Join(dir, "type")) != "bluetooth" {
			continue
		}
		st.Found = true
		if readTrim(filepath.Join(dir, "soft")) == "1" {
			st.SoftBlocked = true
		}
		if readTrim(filepath.Join(dir, "hard")) == "1" {
			st.HardBlocked = true
		}
	}
	return st, nil
}

func readTrim(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
