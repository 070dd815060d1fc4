package tui

import (
	"context"
	"errors"
	"log"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/models/tetris"
	gametetris "github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/services/tetris"
)

// inputBuffer はキー入力をゲームループに渡すチャネルの容量です。
const inputBuffer = 64

// snapshotMsg はゲームループから届いた最新の盤面です。
type snapshotMsg struct {
	gen      int
	snapshot tetris.Snapshot
}

// sessionEndedMsg はゲームループが終了したことを知らせます。
type sessionEndedMsg struct {
	gen int
	err error
}

// outlet はゲームループから tea.Program へメッセージを送る口です。
// Program を作る前に Model を組み立てるので、送り先は後から差し込みます。
type outlet struct {
	send func(tea.Msg)
}

func (o *outlet) post(msg tea.Msg) {
	if o != nil && o.send != nil {
		o.send(msg)
	}
}

// game は1回分のプレイです。
type game struct {
	gen     int
	seed    uint64
	session *gametetris.Session
	inputs  chan gametetris.Action
	ctx     context.Context
	cancel  context.CancelFunc
}

func newGame(gen int, seed uint64, level int, settings gametetris.Settings) *game {
	ctx, cancel := context.WithCancel(context.Background())
	return &game{
		gen:     gen,
		seed:    seed,
		session: gametetris.NewSeededSession(seed, level, settings),
		inputs:  make(chan gametetris.Action, inputBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// run はゲームループを実行する tea.Cmd です。bubbletea が別の goroutine で実行します。
func (g *game) run(out *outlet) tea.Cmd {
	return func() tea.Msg {
		err := g.session.Run(g.ctx, g.inputs, func(s tetris.Snapshot) {
			out.post(snapshotMsg{gen: g.gen, snapshot: s})
		})
		return sessionEndedMsg{gen: g.gen, err: err}
	}
}

// send は操作をブロックせずにゲームループへ渡します。溢れた分は捨てます。
func (g *game) send(a gametetris.Action) bool {
	select {
	case g.inputs <- a:
		return true
	default:
		return false
	}
}

// Model は bubbletea のモデルです。キー入力を操作に変換してゲームループに渡し、
// 届いたスナップショットを描画します。
type Model struct {
	keys     KeyMap
	settings gametetris.Settings
	level    int

	out  *outlet
	game *game
	snap tetris.Snapshot
	over bool
	err  error

	width  int
	height int
}

// NewModel は最初のゲームを用意した Model を返します。ゲームループは Init で始まります。
func NewModel(keys KeyMap, settings gametetris.Settings, seed uint64, level int) Model {
	g := newGame(0, seed, level, settings)
	return Model{
		keys:     keys,
		settings: settings,
		level:    level,
		out:      &outlet{},
		game:     g,
		snap:     g.session.Snapshot(),
	}
}

// bind はゲームループからのメッセージの送り先を設定します。
func (m Model) bind(send func(tea.Msg)) {
	m.out.send = send
}

// Seed は現在のゲームのシードです。
func (m Model) Seed() uint64 { return m.game.seed }

// Snapshot は最後に受け取った盤面です。
func (m Model) Snapshot() tetris.Snapshot { return m.snap }

// Over はゲームが終わって「もう一度遊ぶか」を待っているかどうかです。
func (m Model) Over() bool { return m.over }

// Err はゲームループが異常終了したときのエラーです。
func (m Model) Err() error { return m.err }

func (m Model) Init() tea.Cmd {
	return m.game.run(m.out)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case snapshotMsg:
		if msg.gen != m.game.gen {
			return m, nil
		}
		m.snap = msg.snapshot
		if m.snap.GameOver {
			m.over = true
		}
		return m, nil

	case sessionEndedMsg:
		if msg.gen != m.game.gen {
			return m, nil
		}
		m.over = true
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.game.cancel()
			return m, tea.Quit
		}
		if m.over {
			if key.Matches(msg, m.keys.Restart) {
				return m.restart()
			}
			return m, nil
		}
		if action, ok := m.keys.Action(msg); ok {
			if !m.game.send(action) {
				log.Printf("[TUI] input buffer full, dropping %s", action)
			}
		}
	}
	return m, nil
}

// restart は次のシードで新しいゲームを始めます。
func (m Model) restart() (tea.Model, tea.Cmd) {
	m.game.cancel()
	m.game = newGame(m.game.gen+1, m.game.seed+1, m.level, m.settings)
	m.snap = m.game.session.Snapshot()
	m.over = false
	m.err = nil
	return m, m.game.run(m.out)
}
