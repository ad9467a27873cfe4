//go:build darwin

package capture

func inputArgs(device string) ([]string, error) {
	if device == "" || device == "default" {
		device = "0"
	}
	return []string{"-f", "avfoundation", "-i", ":" + device}, nil
}
