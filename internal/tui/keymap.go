package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/config"
	gametetris "github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/services/tetris"
)

// KeyMap はキー入力とゲーム操作の対応表です。
type KeyMap struct {
	MoveLeft  key.Binding
	MoveRight key.Binding
	SoftDrop  key.Binding
	HardDrop  key.Binding
	Rotate    key.Binding
	Hold      key.Binding
	Quit      key.Binding
	Restart   key.Binding
}

// NewKeyMap は設定のキー割り当てから KeyMap を作ります。
func NewKeyMap(b config.KeyBindings) KeyMap {
	return KeyMap{
		MoveLeft:  binding(b.MoveLeft, "move left"),
		MoveRight: binding(b.MoveRight, "move right"),
		SoftDrop:  binding(b.SoftDrop, "soft drop"),
		HardDrop:  binding(b.HardDrop, "hard drop"),
		Rotate:    binding(b.Rotate, "rotate"),
		Hold:      binding(b.Hold, "hold"),
		Quit:      binding(b.Quit, "quit"),
		Restart:   binding(b.Restart, "play again"),
	}
}

func binding(names []string, desc string) key.Binding {
	keys := make([]string, 0, len(names)+1)
	for _, name := range names {
		keys = append(keys, name)
		// スペースキーは環境によって "space" と " " のどちらでも届く
		if name == "space" {
			keys = append(keys, " ")
		} else if name == " " {
			keys = append(keys, "space")
		}
	}
	return key.NewBinding(
		key.WithKeys(keys...),
		key.WithHelp(strings.Join(names, "/"), desc),
	)
}

// Action は押されたキーに対応するゲーム操作を返します。操作キーでなければ false です。
func (k KeyMap) Action(msg tea.KeyMsg) (gametetris.Action, bool) {
	switch {
	case key.Matches(msg, k.MoveLeft):
		return gametetris.MoveLeft, true
	case key.Matches(msg, k.MoveRight):
		return gametetris.MoveRight, true
	case key.Matches(msg, k.SoftDrop):
		return gametetris.SoftDrop, true
	case key.Matches(msg, k.HardDrop):
		return gametetris.HardDrop, true
	case key.Matches(msg, k.Rotate):
		return gametetris.Rotate, true
	case key.Matches(msg, k.Hold):
		return gametetris.Hold, true
	}
	return 0, false
}

// ShortHelp はプレイ中に表示するキーの一覧です。
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.MoveLeft, k.MoveRight, k.SoftDrop, k.HardDrop, k.Rotate, k.Hold, k.Quit}
}
