//go:build linux

package capture

func inputArgs(device string) ([]string, error) {
	if device == "" {
		device = "default"
	}
	return []string{"-f", "alsa", "-i", device}, nil
}
