//go:build !linux && !darwin

package capture

import (
	"fmt"
	"runtime"
)

func inputArgs(device string) ([]string, error) {
	return nil, fmt.Errorf("capture: no ffmpeg input backend for %s", runtime.GOOS)
}
