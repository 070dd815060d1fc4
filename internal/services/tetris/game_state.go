package tetris

import (
	"errors"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/models/tetris"
)

// State はセッションの状態です。
type State int

const (
	StateFalling  State = iota // 通常の落下中
	StateLocking               // 着地して固定までの猶予をカウント中
	StateGameOver              // 終了。以降ボードは変更されない
)

func (s State) String() string {
	switch s {
	case StateFalling:
		return "falling"
	case StateLocking:
		return "locking"
	case StateGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// TickResult は Tick 1回の結果です。
type TickResult struct {
	Changed   bool                // ボードの見た目が変わったか（再描画が必要か）
	Locks     []tetris.LockResult // この Tick で固定されたピースの結果
	LeveledUp bool                // レベルが上がったか
	GameOver  bool                // ゲームオーバーになっているか
}

// Session は1人分のゲームの進行（重力、固定の猶予、レベル）を管理する状態機械です。
// 時刻は Tick の引数で渡されるだけなので、同じ入力からは常に同じ結果になります。
// Session はゴルーチンセーフではありません。Run を実行する1つのゴルーチンから使います。
type Session struct {
	board    *tetris.Board
	settings Settings
	state    State

	fallTimer time.Duration
	lockTimer time.Duration

	fallInterval time.Duration
	lockDelay    time.Duration

	// 最後にレベルアップを起こした「LinesPerLevel 単位の消去数」
	milestone int
}

// NewSession は board を進行させるセッションを作成します。settings は Validate 済みであること。
func NewSession(board *tetris.Board, settings Settings) *Session {
	if settings.LinesPerLevel < 1 {
		settings.LinesPerLevel = 1
	}
	s := &Session{
		board:     board,
		settings:  settings,
		milestone: board.LinesCleared() / settings.LinesPerLevel,
	}
	s.updateSpeed()
	if board.IsGameOver() {
		s.state = StateGameOver
	}
	return s
}

// NewSeededSession はシードと開始レベルから新しいボードを作ってセッションを返します。
func NewSeededSession(seed uint64, level int, settings Settings) *Session {
	return NewSession(tetris.NewSeededBoard(seed, level), settings)
}

func (s *Session) updateSpeed() {
	s.fallInterval = s.settings.FallIntervalFor(s.board.Level())
	s.lockDelay = s.settings.LockDelayFor(s.board.Level())
}

// Tick は elapsed だけ時間を進め、その前に actions を到着順に適用します。
//
// Parameters:
//
//	elapsed : 前回の Tick からの経過時間
//	actions : この Tick までに届いた操作（FIFO）
//
// Returns:
//
//	TickResult: 再描画の要否、固定の結果、レベルアップ、ゲームオーバー
func (s *Session) Tick(elapsed time.Duration, actions ...Action) TickResult {
	var res TickResult
	if s.state == StateGameOver {
		res.GameOver = true
		return res
	}

	for _, action := range actions {
		s.apply(action, &res)
		if s.state == StateGameOver {
			res.GameOver = true
			return res
		}
	}

	s.fallTimer += elapsed
	if s.state == StateLocking {
		s.lockTimer += elapsed
	}

	if s.fallTimer >= s.fallInterval {
		s.fallTimer = 0
		if err := s.board.TryFall(); err == nil {
			s.state = StateFalling
			s.lockTimer = 0
			res.Changed = true
		} else if !s.settings.LockDelayEnabled {
			s.lock(&res)
		} else if s.state == StateFalling {
			s.state = StateLocking
			s.lockTimer = 0
		}
	}

	if s.state == StateLocking && s.lockTimer >= s.lockDelay {
		s.lock(&res)
	}

	res.GameOver = s.state == StateGameOver
	return res
}

// apply は1つの操作を適用します。失敗した操作は何も起こさずに無視されます。
func (s *Session) apply(action Action, res *TickResult) {
	if err := applyAction(s.board, action); err != nil {
		if errors.Is(err, tetris.ErrGameOver) {
			s.state = StateGameOver
		}
		return
	}
	res.Changed = true

	switch action {
	case HardDrop:
		s.lock(res)
	case SoftDrop:
		s.fallTimer = 0
		s.lockTimer = 0
		if s.settings.LockDelayEnabled && !s.board.CanFall() {
			s.state = StateLocking
		} else {
			s.state = StateFalling
		}
	case Hold:
		s.fallTimer = 0
		s.cancelLock()
		if s.board.IsGameOver() {
			s.state = StateGameOver
		}
	default:
		s.cancelLock()
	}
}

func (s *Session) cancelLock() {
	s.state = StateFalling
	s.lockTimer = 0
}

// lock は現在のピースを固定し、ライン数に応じてレベルを上げます。
func (s *Session) lock(res *TickResult) {
	result := s.board.LockCurrentPiece()
	res.Locks = append(res.Locks, result)
	res.Changed = true
	s.fallTimer = 0
	s.lockTimer = 0
	s.state = StateFalling

	if result.Rows > 0 {
		milestone := s.board.LinesCleared() / s.settings.LinesPerLevel
		if milestone > s.milestone {
			s.milestone = milestone
			s.board.LevelUp()
			s.updateSpeed()
			res.LeveledUp = true
		}
	}

	if result.GameOver {
		s.state = StateGameOver
	}
}

func (s *Session) State() State { return s.state }
func (s *Session) Snapshot() tetris.Snapshot { return s.board.Snapshot() }
func (s *Session) Score() int { return s.board.Score() }
func (s *Session) Level() int { return s.board.Level() }
func (s *Session) LinesCleared() int { return s.board.LinesCleared() }
func (s *Session) FallInterval() time.Duration { return s.fallInterval }
func (s *Session) LockDelay() time.Duration { return s.lockDelay }
func (s *Session) IsGameOver() bool { return s.state == StateGameOver }
