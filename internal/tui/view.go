package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/models/tetris"
)

const (
	blockCell = "██"
	ghostCell = "░░"
	emptyCell = " ."
)

var pieceColors = map[tetris.Color]lipgloss.Color{
	tetris.ColorPurple: lipgloss.Color("5"),
	tetris.ColorBlue:   lipgloss.Color("4"),
	tetris.ColorOrange: lipgloss.Color("208"),
	tetris.ColorGreen:  lipgloss.Color("2"),
	tetris.ColorRed:    lipgloss.Color("1"),
	tetris.ColorYellow: lipgloss.Color("3"),
	tetris.ColorCyan:   lipgloss.Color("6"),
}

var (
	boardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8"))
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1).
			Width(12)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

func cellStyle(c tetris.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(pieceColors[c])
}

// RenderBoard は盤面を上の行から描画します。
// 見えない行（VisibleHeight 以上）は薄く表示し、ゴーストピースは網掛けで表示します。
func RenderBoard(s tetris.Snapshot) string {
	active := make(map[tetris.Position]tetris.Color, 4)
	ghost := make(map[tetris.Position]tetris.Color, 4)
	if !s.GameOver {
		for _, sq := range s.Ghost.Squares {
			ghost[sq.Position] = sq.Color
		}
		for _, sq := range s.Current.Squares {
			active[sq.Position] = sq.Color
		}
	}

	rows := make([]string, 0, tetris.BoardHeight)
	for y := tetris.BoardHeight - 1; y >= 0; y-- {
		var b strings.Builder
		for x := 0; x < tetris.BoardWidth; x++ {
			pos := tetris.Position{X: x, Y: y}
			var cell string
			if c, ok := active[pos]; ok {
				cell = cellStyle(c).Render(blockCell)
			} else if c := s.ColorAt(pos); c != tetris.ColorNone {
				cell = cellStyle(c).Render(blockCell)
			} else if c, ok := ghost[pos]; ok {
				cell = cellStyle(c).Render(ghostCell)
			} else {
				cell = emptyCell
			}
			if y >= tetris.VisibleHeight {
				cell = dimStyle.Render(cell)
			}
			b.WriteString(cell)
		}
		rows = append(rows, b.String())
	}
	return boardStyle.Render(strings.Join(rows, "\n"))
}

// RenderPiece はホールドやネクスト用にピースを出現時の向きで2行に描画します。
func RenderPiece(t tetris.PieceType) string {
	piece := tetris.NewPiece(t)
	filled := make(map[tetris.Position]bool, 4)
	for _, pos := range piece.Positions() {
		filled[pos] = true
	}
	style := cellStyle(tetris.ColorOf(t))

	lines := make([]string, 0, 2)
	for y := 1; y >= 0; y-- {
		var b strings.Builder
		for x := -1; x <= 2; x++ {
			if filled[tetris.Position{X: x, Y: y}] {
				b.WriteString(style.Render(blockCell))
			} else {
				b.WriteString("  ")
			}
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func renderHeld(s tetris.Snapshot) string {
	body := "\n"
	if s.Held != nil {
		body = RenderPiece(s.Held.Type)
		if !s.CanSwapHeld {
			body = dimStyle.Render(body)
		}
	}
	return panelStyle.Render(titleStyle.Render("HOLD") + "\n" + body)
}

func renderQueue(s tetris.Snapshot) string {
	parts := []string{titleStyle.Render("NEXT")}
	for _, t := range s.Queue {
		parts = append(parts, RenderPiece(t))
	}
	return panelStyle.Render(strings.Join(parts, "\n"))
}

func renderStats(s tetris.Snapshot) string {
	return panelStyle.Render(fmt.Sprintf("%s\n%d\n%s\n%d\n%s\n%d",
		titleStyle.Render("SCORE"), s.Score,
		titleStyle.Render("LEVEL"), s.Level,
		titleStyle.Render("LINES"), s.LinesCleared,
	))
}

func renderHelp(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return helpStyle.Render(strings.Join(parts, " • "))
}

func firstKey(b key.Binding) string {
	if keys := b.Keys(); len(keys) > 0 {
		return keys[0]
	}
	return "?"
}

// View はゲーム画面全体を組み立てます。
func (m Model) View() string {
	left := lipgloss.JoinVertical(lipgloss.Left, renderHeld(m.snap), renderStats(m.snap))
	screen := lipgloss.JoinHorizontal(lipgloss.Top, left, RenderBoard(m.snap), renderQueue(m.snap))

	footer := renderHelp(m.keys.ShortHelp())
	if m.over {
		prompt := fmt.Sprintf("GAME OVER  play again? (%s / %s)", firstKey(m.keys.Restart), firstKey(m.keys.Quit))
		footer = promptStyle.Render(prompt)
		if m.err != nil {
			footer += "\n" + helpStyle.Render("error: "+m.err.Error())
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, screen, footer) + "\n"
}
