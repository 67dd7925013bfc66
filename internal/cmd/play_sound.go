package cmd

// PlaySoundCmd plays a notification sound
type PlaySoundCmd struct {
	Event string `help:"Event name to select the sound for" arg:"" optional:""`
}

// Run executes the sound playing logic
func (p *PlaySoundCmd) Run(cli *CLI) error {
	if p.Event != "" {
		return cli.Container.Sound.PlaySoundForEvent(p.Event)
	}
	return cli.Container.Sound.PlaySound()
}
