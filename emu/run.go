package emu

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Run opens a window sized from the rig's config and drives the rig until
// the window closes. It must be called from the main goroutine and blocks
// for the lifetime of the window.
func Run(rig *Rig) error {
	title := rig.cfg.Title
	if title == "" {
		title = "marrow emulator"
	}
	ebiten.SetWindowSize(rig.cfg.Width, rig.cfg.Height)
	ebiten.SetWindowTitle(title)
	return ebiten.RunGame(rig)
}
