//go:build darwin

package sound

import "os/exec"

// playForEvent plays sounds on macOS using afplay
func playForEvent(eventType string) error {
	var soundFiles []string

	switch eventType {
	case "completed":
		// Hook or executor finished - calm, completion sound
		soundFiles = []string{
			"/System/Library/Sounds/Glass.aiff",
			"/System/Library/Sounds/Tink.aiff",
		}
	case "failed", "error":
		soundFiles = []string{
			"/System/Library/Sounds/Basso.aiff",
			"/System/Library/Sounds/Funk.aiff",
		}
	case "started":
		soundFiles = []string{
			"/System/Library/Sounds/Submarine.aiff",
			"/System/Library/Sounds/Purr.aiff",
		}
	default:
		soundFiles = []string{"/System/Library/Sounds/Glass.aiff"}
	}

	// Try each sound file
	for _, soundFile := range soundFiles {
		cmd := exec.Command("afplay", soundFile)
		if err := cmd.Start(); err == nil {
			return nil
		}
	}

	return terminalBell()
}
