package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/config"
)

// Run はターミナル版のゲームを起動し、プレイヤーが終了するまでブロックします。
func Run(cfg *config.Config, seed uint64, level int) error {
	m := NewModel(NewKeyMap(cfg.Keys), cfg.Game, seed, level)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.bind(p.Send)

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if fm, ok := final.(Model); ok {
		fm.game.cancel()
		if fm.err != nil {
			return fmt.Errorf("tui: game loop stopped: %w", fm.err)
		}
	}
	return nil
}
