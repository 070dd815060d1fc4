package tetris

// Snapshot はある時点のボードの状態を読み取り専用でまとめたものです。
// 描画や WebSocket での配信に使い、ボード本体とはメモリを共有しません。
type Snapshot struct {
	Grid         [BoardHeight][BoardWidth]Color `json:"grid"` // [y][x]、ColorNone は空
	Current      Piece                          `json:"current"`
	Ghost        Piece                          `json:"ghost"`
	Held         *Piece                         `json:"held,omitempty"`
	Next         Piece                          `json:"next"`
	Queue        []PieceType                    `json:"queue"`
	Score        int                            `json:"score"`
	Level        int                            `json:"level"`
	LinesCleared int                            `json:"linesCleared"`
	CanSwapHeld  bool                           `json:"canSwapHeld"`
	GameOver     bool                           `json:"gameOver"`
}

// Snapshot は現在のボードの状態をコピーして返します。
func (b *Board) Snapshot() Snapshot {
	s := Snapshot{
		Current:      b.current,
		Ghost:        b.GhostPiece(),
		Next:         b.queue[0],
		Queue:        make([]PieceType, len(b.queue)),
		Score:        b.score,
		Level:        b.level,
		LinesCleared: b.linesCleared,
		CanSwapHeld:  b.canSwap,
		GameOver:     b.gameOver,
	}
	for y := 0; y < BoardHeight; y++ {
		for x := 0; x < BoardWidth; x++ {
			if b.occupied[y][x] {
				s.Grid[y][x] = b.cells[y][x].Color
			}
		}
	}
	for i, p := range b.queue {
		s.Queue[i] = p.Type
	}
	if b.held != nil {
		held := *b.held
		s.Held = &held
	}
	return s
}

// ColorAt は固定済みのマスの色を返します。盤面外や空きマスは ColorNone です。
func (s Snapshot) ColorAt(pos Position) Color {
	if pos.X < 0 || pos.X >= BoardWidth || pos.Y < 0 || pos.Y >= BoardHeight {
		return ColorNone
	}
	return s.Grid[pos.Y][pos.X]
}
