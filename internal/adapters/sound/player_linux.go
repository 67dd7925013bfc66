//go:build linux

package sound

import "os/exec"

// freedesktop sound theme files shipped by most desktop distributions
var linuxSounds = map[string]string{
	"completed": "/usr/share/sounds/freedesktop/stereo/complete.oga",
	"failed":    "/usr/share/sounds/freedesktop/stereo/dialog-error.oga",
	"error":     "/usr/share/sounds/freedesktop/stereo/dialog-error.oga",
	"started":   "/usr/share/sounds/freedesktop/stereo/message.oga",
}

// playForEvent plays sounds on Linux, trying paplay then aplay
func playForEvent(eventType string) error {
	soundFile, ok := linuxSounds[eventType]
	if !ok {
		soundFile = linuxSounds["completed"]
	}

	for _, player := range []string{"paplay", "aplay"} {
		cmd := exec.Command(player, soundFile)
		if err := cmd.Start(); err == nil {
			return nil
		}
	}

	return terminalBell()
}
