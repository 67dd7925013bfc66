package sound

import (
	"fmt"

	"quadro/internal/ports"
)

// Player implements ports.SoundPlayer
type Player struct{}

var _ ports.SoundPlayer = (*Player)(nil)

// NewPlayer creates a new sound player
func NewPlayer() *Player {
	return &Player{}
}

// PlaySound plays the default notification sound
func (p *Player) PlaySound() error {
	return p.PlaySoundForEvent("completed")
}

// PlaySoundForEvent plays different sounds based on the event type.
// Platform-specific implementations are in player_*.go files with build tags.
func (p *Player) PlaySoundForEvent(eventType string) error {
	return playForEvent(eventType)
}

// terminalBell outputs a terminal bell character as fallback
func terminalBell() error {
	fmt.Print("\a")
	return nil
}
