package tetris

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceProvider は決められた順番を繰り返すテスト用の供給元です。
type sequenceProvider struct {
	types []PieceType
	next  int
}

func (p *sequenceProvider) Next() Piece {
	t := p.types[p.next%len(p.types)]
	p.next++
	return NewPiece(t)
}

func newTestBoard(types ...PieceType) *Board {
	return NewBoard(&sequenceProvider{types: types}, 1)
}

// fill は固定済みのマスを直接置きます。
func fill(b *Board, color Color, positions ...Position) {
	for _, pos := range positions {
		b.occupied[pos.Y][pos.X] = true
		b.cells[pos.Y][pos.X] = Square{Position: pos, Color: color}
	}
}

// fillRow は y 行を skip の列以外すべて埋めます。
func fillRow(b *Board, y int, skip ...int) {
	skipped := make(map[int]bool)
	for _, x := range skip {
		skipped[x] = true
	}
	for x := 0; x < BoardWidth; x++ {
		if !skipped[x] {
			fill(b, ColorRed, Position{X: x, Y: y})
		}
	}
}

// verticalI は列 x の row 行から上に4マス伸びる縦向きの I-ミノを返します。
func verticalI(x, row int) Piece {
	piece := NewPiece(TypeI)
	piece.Rotate()
	piece.Translate(Position{X: x + 1, Y: row + 2})
	return piece
}

func placed(t PieceType, at Position) Piece {
	piece := NewPiece(t)
	piece.Translate(at)
	return piece
}

func assertGridConsistent(t *testing.T, b *Board) {
	t.Helper()
	for y := 0; y < BoardHeight; y++ {
		for x := 0; x < BoardWidth; x++ {
			hasColor := b.cells[y][x].Color != ColorNone
			assert.Equal(t, b.occupied[y][x], hasColor, "cell (%d,%d)", x, y)
		}
	}
}

func TestNewBoard(t *testing.T) {
	b := newTestBoard(TypeT, TypeJ, TypeL, TypeS, TypeZ, TypeO, TypeI)

	assert.Equal(t, TypeT, b.CurrentPiece().Type)
	assert.Equal(t, placed(TypeT, PlayPoint), b.CurrentPiece())
	assert.Len(t, b.Queue(), PieceQueueSize)
	assert.Equal(t, TypeJ, b.NextPiece().Type)
	assert.True(t, b.CanSwapHeld())
	assert.Equal(t, 1, b.Level())
	assert.Equal(t, 0, b.Score())
	assert.False(t, b.IsGameOver())

	_, ok := b.HeldPiece()
	assert.False(t, ok)

	assert.Equal(t, 1, NewBoard(&sequenceProvider{types: []PieceType{TypeO}}, 0).Level())
}

func TestBoard_IsFreeBounds(t *testing.T) {
	b := newTestBoard(TypeO)

	for _, pos := range []Position{{-1, 0}, {10, 0}, {0, -1}, {0, 22}, {-5, 30}, {BoardWidth, BoardHeight}} {
		assert.False(t, b.IsFree(pos), "%v", pos)
	}
	for _, pos := range []Position{{0, 0}, {9, 0}, {0, 21}, {9, 21}} {
		assert.True(t, b.IsFree(pos), "%v", pos)
	}

	fill(b, ColorBlue, Position{X: 3, Y: 3})
	assert.False(t, b.IsFree(Position{X: 3, Y: 3}))
}

func TestBoard_SeedOneFallThenLock(t *testing.T) {
	b := NewSeededBoard(1, 1)
	first := b.CurrentPiece().Type

	var err error
	for err == nil {
		err = b.TryFall()
	}
	assert.ErrorIs(t, err, ErrFall)

	lowest := BoardHeight
	for _, pos := range b.CurrentPiece().Positions() {
		lowest = min(lowest, pos.Y)
	}
	assert.Equal(t, 0, lowest)

	res := b.LockCurrentPiece()
	assert.False(t, res.GameOver)
	assert.Equal(t, 0, res.Rows)
	assert.True(t, b.CanSwapHeld())
	assert.False(t, b.IsGameOver())

	count := 0
	for y := 0; y < BoardHeight; y++ {
		for x := 0; x < BoardWidth; x++ {
			if b.Occupied(Position{X: x, Y: y}) {
				count++
				sq, ok := b.CellAt(Position{X: x, Y: y})
				require.True(t, ok)
				assert.Equal(t, ColorOf(first), sq.Color)
			}
		}
	}
	assert.Equal(t, 4, count)
	assertGridConsistent(t, b)

	// 同じシードからは同じ結果になる
	again := NewSeededBoard(1, 1)
	assert.Equal(t, first, again.CurrentPiece().Type)
}

func TestBoard_TryMove(t *testing.T) {
	b := newTestBoard(TypeT)

	require.NoError(t, b.TryMove(DirLeft))
	assert.Equal(t, placed(TypeT, Position{X: 3, Y: 20}), b.CurrentPiece())

	require.NoError(t, b.TryMove(DirRight))
	require.NoError(t, b.TryMove(DirRight))
	assert.Equal(t, placed(TypeT, Position{X: 5, Y: 20}), b.CurrentPiece())

	// 左の壁まで動かすとそれ以上は動けない
	for b.TryMove(DirLeft) == nil {
	}
	before := b.CurrentPiece()
	assert.ErrorIs(t, b.TryMove(DirLeft), ErrMove)
	assert.Equal(t, before, b.CurrentPiece())
	assert.Equal(t, 1, before.Squares[0].Position.X)
	assert.Equal(t, 0, b.Score())
}

func TestBoard_TryMoveBlockedByStack(t *testing.T) {
	b := newTestBoard(TypeO)
	b.current = placed(TypeO, Position{X: 4, Y: 0})
	fill(b, ColorRed, Position{X: 6, Y: 1})

	assert.False(t, b.CanMove(DirRight))
	assert.ErrorIs(t, b.TryMove(DirRight), ErrMove)
	assert.ErrorIs(t, b.TryMove(DirBottom), ErrMove)
	assert.NoError(t, b.TryMove(DirLeft))
}

func TestBoard_SoftDropScore(t *testing.T) {
	b := newTestBoard(TypeT)

	require.NoError(t, b.TryMove(DirBottom))
	require.NoError(t, b.TryMove(DirBottom))
	assert.Equal(t, 2*SoftDropScore, b.Score())
	assert.Equal(t, placed(TypeT, Position{X: 4, Y: 18}), b.CurrentPiece())

	// 重力による落下はスコアにならない
	require.NoError(t, b.TryFall())
	assert.Equal(t, 2*SoftDropScore, b.Score())
}

func TestBoard_HardDropScore(t *testing.T) {
	b := newTestBoard(TypeT)

	require.NoError(t, b.TryMove(DirTop))
	assert.Equal(t, 20*HardDropScore, b.Score())
	assert.Equal(t, placed(TypeT, Position{X: 4, Y: 0}), b.CurrentPiece())
	assert.False(t, b.CanFall())

	// 着地済みならハードドロップは失敗する
	assert.ErrorIs(t, b.TryMove(DirTop), ErrMove)
	assert.Equal(t, 20*HardDropScore, b.Score())
}

func TestBoard_CanRotate(t *testing.T) {
	t.Run("square never rotates", func(t *testing.T) {
		b := newTestBoard(TypeO)
		assert.Equal(t, RotationNone, b.CanRotate())
		assert.ErrorIs(t, b.TryRotate(), ErrRotate)
		assert.Equal(t, 0, b.CurrentPiece().Rotation)
	})

	t.Run("regular", func(t *testing.T) {
		b := newTestBoard(TypeT)
		assert.Equal(t, RotationRegular, b.CanRotate())
		require.NoError(t, b.TryRotate())
		assert.Equal(t, 1, b.CurrentPiece().Rotation)
		assert.Equal(t, PlayPoint, b.CurrentPiece().Squares[0].Position)
	})

	t.Run("kick off the left wall", func(t *testing.T) {
		b := newTestBoard(TypeT)
		piece := placed(TypeT, Position{X: 0, Y: 10})
		piece.Rotate() // 縦向き、出っ張りは右
		b.current = piece

		assert.Equal(t, RotationShiftedRight, b.CanRotate())
		require.NoError(t, b.TryRotate())
		assert.Equal(t, Position{X: 1, Y: 10}, b.CurrentPiece().Squares[0].Position)
		for _, pos := range b.CurrentPiece().Positions() {
			assert.True(t, b.IsFree(pos))
		}
	})

	t.Run("kick off the right wall", func(t *testing.T) {
		b := newTestBoard(TypeT)
		piece := placed(TypeT, Position{X: 9, Y: 10})
		piece.Rotate()
		piece.Rotate()
		piece.Rotate() // 縦向き、出っ張りは左
		b.current = piece

		assert.Equal(t, RotationShiftedLeft, b.CanRotate())
		require.NoError(t, b.TryRotate())
		assert.Equal(t, Position{X: 8, Y: 10}, b.CurrentPiece().Squares[0].Position)
		assert.Equal(t, 0, b.CurrentPiece().Rotation)
	})

	t.Run("no room", func(t *testing.T) {
		b := newTestBoard(TypeI)
		b.current = verticalI(4, 0)
		for y := 0; y < 4; y++ {
			fill(b, ColorRed, Position{X: 3, Y: y}, Position{X: 5, Y: y})
		}
		before := b.CurrentPiece()

		assert.Equal(t, RotationNone, b.CanRotate())
		assert.ErrorIs(t, b.TryRotate(), ErrRotate)
		assert.Equal(t, before, b.CurrentPiece())
	})
}

func TestBoard_TrySwapHeld(t *testing.T) {
	b := newTestBoard(TypeT, TypeJ, TypeL, TypeS, TypeZ, TypeO, TypeI)
	require.NoError(t, b.TryMove(DirLeft))
	require.NoError(t, b.TryRotate())

	require.NoError(t, b.TrySwapHeld())
	held, ok := b.HeldPiece()
	require.True(t, ok)
	// ホールドしたピースは出現時の位置と回転に戻る
	assert.Equal(t, placed(TypeT, PlayPoint), held)
	assert.Equal(t, placed(TypeJ, PlayPoint), b.CurrentPiece())
	assert.Equal(t, TypeL, b.NextPiece().Type)
	assert.False(t, b.CanSwapHeld())

	// 2回続けてのホールドは失敗し、何も変わらない
	before := b.Snapshot()
	assert.ErrorIs(t, b.TrySwapHeld(), ErrSwap)
	assert.Equal(t, before, b.Snapshot())

	require.NoError(t, b.TryMove(DirTop))
	b.LockCurrentPiece()
	assert.True(t, b.CanSwapHeld())
	assert.Equal(t, TypeL, b.CurrentPiece().Type)

	// 2回目以降は入れ替え
	require.NoError(t, b.TrySwapHeld())
	held, _ = b.HeldPiece()
	assert.Equal(t, TypeL, held.Type)
	assert.Equal(t, placed(TypeT, PlayPoint), b.CurrentPiece())
	assert.Equal(t, TypeS, b.NextPiece().Type)
}

func TestBoard_LockDrawsFromQueue(t *testing.T) {
	b := newTestBoard(TypeT, TypeJ, TypeL, TypeS, TypeZ, TypeO, TypeI)
	queue := b.Queue()

	require.NoError(t, b.TryMove(DirTop))
	b.LockCurrentPiece()

	assert.Equal(t, queue[0].Type, b.CurrentPiece().Type)
	assert.Equal(t, PlayPoint, b.CurrentPiece().Squares[0].Position)
	assert.Len(t, b.Queue(), PieceQueueSize)
	assert.Equal(t, TypeI, b.Queue()[PieceQueueSize-1].Type)
}

func TestBoard_ClearSingleRowCollapses(t *testing.T) {
	b := newTestBoard(TypeO)
	fillRow(b, 0, 0)
	fill(b, ColorGreen, Position{X: 3, Y: 1}, Position{X: 5, Y: 1})
	fill(b, ColorBlue, Position{X: 7, Y: 2})
	b.current = verticalI(0, 0)

	res := b.LockCurrentPiece()

	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, 100, res.Points)
	assert.Equal(t, 100, b.Score())
	assert.Equal(t, 1, b.LinesCleared())

	// 上にあったマスが1行ずつ下がっている
	for _, pos := range []Position{{0, 0}, {3, 0}, {5, 0}, {0, 1}, {7, 1}, {0, 2}} {
		assert.True(t, b.Occupied(pos), "%v", pos)
	}
	sq, ok := b.CellAt(Position{X: 3, Y: 0})
	require.True(t, ok)
	assert.Equal(t, ColorGreen, sq.Color)
	assert.Equal(t, Position{X: 3, Y: 0}, sq.Position)

	for _, pos := range []Position{{1, 0}, {7, 2}, {0, 3}} {
		assert.False(t, b.Occupied(pos), "%v", pos)
	}
	assertGridConsistent(t, b)
}

func TestBoard_ClearTetris(t *testing.T) {
	b := newTestBoard(TypeO)
	for y := 0; y < 4; y++ {
		fillRow(b, y, 9)
	}
	fill(b, ColorYellow, Position{X: 2, Y: 4}, Position{X: 3, Y: 5})
	b.LevelUp()
	b.current = verticalI(9, 0)

	res := b.LockCurrentPiece()

	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 800*2, res.Points)
	assert.Equal(t, 4, b.LinesCleared())
	assert.True(t, b.Occupied(Position{X: 2, Y: 0}))
	assert.True(t, b.Occupied(Position{X: 3, Y: 1}))
	for y := 2; y < BoardHeight; y++ {
		for x := 0; x < BoardWidth; x++ {
			assert.False(t, b.Occupied(Position{X: x, Y: y}), "(%d,%d)", x, y)
		}
	}
	assertGridConsistent(t, b)
}

func TestBoard_ClearSplitRows(t *testing.T) {
	b := newTestBoard(TypeO)
	// 0 と 2 行目だけが揃う
	fillRow(b, 0, 9)
	fillRow(b, 1, 4, 9)
	fillRow(b, 2, 9)
	fill(b, ColorPurple, Position{X: 1, Y: 4})
	b.current = verticalI(9, 0)

	res := b.LockCurrentPiece()

	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 300, res.Points)
	assert.False(t, b.Occupied(Position{X: 4, Y: 0}))
	assert.True(t, b.Occupied(Position{X: 9, Y: 0}))
	assert.True(t, b.Occupied(Position{X: 9, Y: 1}))
	assert.True(t, b.Occupied(Position{X: 1, Y: 2}))
	assertGridConsistent(t, b)
}

func TestBoard_ClearTopRow(t *testing.T) {
	b := newTestBoard(TypeO)
	for y := 0; y < BoardHeight-1; y++ {
		fillRow(b, y, 0, 1)
	}
	fillRow(b, BoardHeight-1, 0)
	b.current = verticalI(0, BoardHeight-4)

	res := b.LockCurrentPiece()

	// 最上段の上には行がないので空行が入る
	assert.Equal(t, 1, res.Rows)
	for x := 0; x < BoardWidth; x++ {
		assert.False(t, b.Occupied(Position{X: x, Y: BoardHeight - 1}))
	}
	assert.True(t, b.Occupied(Position{X: 0, Y: BoardHeight - 2}))
	assertGridConsistent(t, b)
}

func TestLineClearScore(t *testing.T) {
	cases := []struct {
		rows, level, want int
	}{
		{0, 1, 0},
		{1, 1, 100},
		{2, 1, 300},
		{3, 1, 500},
		{4, 1, 800},
		{5, 1, 0},
		{1, 3, 300},
		{4, 10, 8000},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, LineClearScore(c.rows, c.level), "rows=%d level=%d", c.rows, c.level)
	}
}

func TestBoard_GameOver(t *testing.T) {
	b := newTestBoard(TypeO)
	b.current = placed(TypeO, Position{X: 0, Y: 0})
	fill(b, ColorRed, Position{X: 4, Y: 20}, Position{X: 5, Y: 21})

	res := b.LockCurrentPiece()
	require.True(t, res.GameOver)
	assert.True(t, b.IsGameOver())

	before := b.Snapshot()
	assert.True(t, before.GameOver)

	for _, err := range []error{b.TryMove(DirLeft), b.TryFall(), b.TryRotate(), b.TrySwapHeld()} {
		assert.True(t, errors.Is(err, ErrGameOver), "%v", err)
	}
	assert.True(t, b.LockCurrentPiece().GameOver)
	assert.Equal(t, before, b.Snapshot())
}

func TestBoard_GhostPiece(t *testing.T) {
	b := newTestBoard(TypeT)
	fill(b, ColorRed, Position{X: 4, Y: 5})

	ghost := b.GhostPiece()
	assert.Equal(t, placed(TypeT, Position{X: 4, Y: 6}), ghost)
	assert.Equal(t, placed(TypeT, PlayPoint), b.CurrentPiece())
}

func TestBoard_Snapshot(t *testing.T) {
	b := newTestBoard(TypeS, TypeZ)
	require.NoError(t, b.TrySwapHeld())
	fill(b, ColorCyan, Position{X: 0, Y: 0})

	s := b.Snapshot()
	require.NotNil(t, s.Held)
	assert.Equal(t, TypeS, s.Held.Type)
	assert.Equal(t, TypeZ, s.Current.Type)
	assert.Len(t, s.Queue, PieceQueueSize)
	assert.Equal(t, ColorCyan, s.ColorAt(Position{X: 0, Y: 0}))
	assert.Equal(t, ColorNone, s.ColorAt(Position{X: 1, Y: 0}))
	assert.Equal(t, ColorNone, s.ColorAt(Position{X: -1, Y: 0}))
	assert.False(t, s.CanSwapHeld)

	// スナップショットはボードと共有しない
	s.Held.Type = TypeI
	held, _ := b.HeldPiece()
	assert.Equal(t, TypeS, held.Type)
}

func TestBoard_String(t *testing.T) {
	b := newTestBoard(TypeT)
	fill(b, ColorRed, Position{X: 0, Y: 0})

	out := b.String()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Len(t, lines, BoardHeight)
	assert.Equal(t, 4, strings.Count(out, "@"))
	assert.Equal(t, "r.........", lines[BoardHeight-1])
}
