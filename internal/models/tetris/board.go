package tetris

import (
	"fmt"
	"strings"

	"github.com/kamstrup/intmap"
)

const (
	BoardWidth    = 10 // テトリスボードの幅
	BoardHeight   = 22 // テトリスボードの高さ（見えないバッファ2行を含む）
	VisibleHeight = 20 // 表示部分の高さ。これより上の行はピースの出現用バッファです
)

// PieceQueueSize は「次のピース」キューの長さです。
const PieceQueueSize = 5

// PlayPoint は新しいピースが出現する位置（出現アンカーの移動先）です。
var PlayPoint = Position{X: 4, Y: 20}

const (
	SoftDropScore = 1 // ソフトドロップ1行あたりのスコア
	HardDropScore = 2 // ハードドロップ1行あたりのスコア
)

// Direction はピースの移動方向です。
type Direction int

const (
	DirLeft   Direction = iota // 左へ1列
	DirRight                   // 右へ1列
	DirBottom                  // ソフトドロップ（下へ1行）
	DirTop                     // ハードドロップ（落ちられなくなるまで落下）
)

// RotationOutcome は回転を試みた結果どの方法なら回転できるかを表します。
type RotationOutcome int

const (
	RotationNone         RotationOutcome = iota // 回転できない
	RotationRegular                             // その場で回転できる
	RotationShiftedRight                        // 右に1列ずらせば回転できる
	RotationShiftedLeft                         // 左に1列ずらせば回転できる
)

// Offset は回転の前にピースをずらす量を返します。
func (r RotationOutcome) Offset() Position {
	switch r {
	case RotationShiftedRight:
		return Position{X: 1}
	case RotationShiftedLeft:
		return Position{X: -1}
	default:
		return Position{}
	}
}

// LockResult はピースを固定した結果です。
type LockResult struct {
	Rows     int  // 同時に消えた行数
	Points   int  // ライン消去で得たスコア
	GameOver bool // 次のピースが出現できずゲームオーバーになったか
}

// Board はテトリスのゲームボードです。
// occupied と cells は [y][x] でアクセスします。y は行（0 が最下段）、x は列です。
// 落下中のピースは固定されるまでグリッドには書き込まれません。
type Board struct {
	occupied [BoardHeight][BoardWidth]bool
	cells    [BoardHeight][BoardWidth]Square

	provider PieceProvider
	current  Piece
	held     *Piece
	canSwap  bool
	queue    []Piece

	score        int
	level        int
	linesCleared int
	gameOver     bool
}

// NewBoard は空のボードを作成し、provider から最初のピースとキューを補充します。
//
// Parameters:
//
//	provider : ピースの供給元
//	level    : 開始レベル（1未満は1として扱う）
func NewBoard(provider PieceProvider, level int) *Board {
	if level < 1 {
		level = 1
	}
	b := &Board{
		provider: provider,
		canSwap:  true,
		level:    level,
		queue:    make([]Piece, 0, PieceQueueSize),
	}
	b.current = spawn(provider.Next())
	for i := 0; i < PieceQueueSize; i++ {
		b.queue = append(b.queue, provider.Next())
	}
	b.gameOver = !b.canSpawn()
	return b
}

// NewSeededBoard はシードから BagProvider を作り、それを使うボードを返します。
func NewSeededBoard(seed uint64, level int) *Board {
	return NewBoard(NewBagProvider(seed), level)
}

// spawn はピースを回転フェーズ0の出現位置に置き直したコピーを返します。
func spawn(p Piece) Piece {
	fresh := NewPiece(p.Type)
	fresh.Translate(PlayPoint)
	return fresh
}

// IsFree はその座標が盤面内かつ空いているかどうかを返します。
func (b *Board) IsFree(pos Position) bool {
	if pos.X < 0 || pos.X >= BoardWidth {
		return false
	}
	if pos.Y < 0 || pos.Y >= BoardHeight {
		return false
	}
	return !b.occupied[pos.Y][pos.X]
}

func (b *Board) allFree(positions [4]Position, offset Position) bool {
	for _, pos := range positions {
		if !b.IsFree(pos.Add(offset)) {
			return false
		}
	}
	return true
}

func (b *Board) canSpawn() bool {
	return b.allFree(b.current.Positions(), Position{})
}

// CanFall は現在のピースが1行下に移動できるかどうかを返します。
func (b *Board) CanFall() bool {
	return b.allFree(b.current.Positions(), Position{Y: -1})
}

// CanMove は現在のピースを direction に動かせるかどうかを返します。
// ハードドロップ (DirTop) も「少なくとも1行落ちられるか」で判定します。
func (b *Board) CanMove(direction Direction) bool {
	switch direction {
	case DirLeft:
		return b.allFree(b.current.Positions(), Position{X: -1})
	case DirRight:
		return b.allFree(b.current.Positions(), Position{X: 1})
	case DirBottom, DirTop:
		return b.CanFall()
	default:
		return false
	}
}

// CanRotate は回転後の位置を調べ、どの方法で回転できるかを返します。
// その場 → 右に1列 → 左に1列 の順に試し、それ以上の壁蹴りは行いません。
// O-ミノは見た目が変わらないので常に RotationNone です。
func (b *Board) CanRotate() RotationOutcome {
	if b.current.Type == TypeO {
		return RotationNone
	}
	rotated := b.current.RotatedPositions()
	for _, outcome := range []RotationOutcome{RotationRegular, RotationShiftedRight, RotationShiftedLeft} {
		if b.allFree(rotated, outcome.Offset()) {
			return outcome
		}
	}
	return RotationNone
}

// TryMove は現在のピースを direction に動かします。動かせない場合は何も変更せず ErrMove を返します。
// DirBottom はソフトドロップとして1行ごとに SoftDropScore、
// DirTop はハードドロップとして落下した1行ごとに HardDropScore を加算します。
func (b *Board) TryMove(direction Direction) error {
	if b.gameOver {
		return fmt.Errorf("%w: %w", ErrMove, ErrGameOver)
	}
	if !b.CanMove(direction) {
		return ErrMove
	}
	switch direction {
	case DirLeft:
		b.current.Translate(Position{X: -1})
	case DirRight:
		b.current.Translate(Position{X: 1})
	case DirBottom:
		b.current.Translate(Position{Y: -1})
		b.score += SoftDropScore
	case DirTop:
		for b.TryFall() == nil {
			b.score += HardDropScore
		}
	}
	return nil
}

// TryFall は現在のピースを1行下に落とします。重力とソフトドロップの両方で使われる基本操作です。
func (b *Board) TryFall() error {
	if b.gameOver {
		return fmt.Errorf("%w: %w", ErrFall, ErrGameOver)
	}
	if !b.CanFall() {
		return ErrFall
	}
	b.current.Translate(Position{Y: -1})
	return nil
}

// TryRotate は CanRotate の結果に従ってピースをずらしてから回転させます。
func (b *Board) TryRotate() error {
	if b.gameOver {
		return fmt.Errorf("%w: %w", ErrRotate, ErrGameOver)
	}
	outcome := b.CanRotate()
	if outcome == RotationNone {
		return ErrRotate
	}
	b.current.Translate(outcome.Offset())
	b.current.Rotate()
	return nil
}

// TrySwapHeld は現在のピースをホールドします。
// ホールドが空なら現在のピースをしまってキューから次のピースを引き、
// 既にホールドがあれば入れ替えます。どちらの場合も現在のピースは回転と位置を出現時に戻します。
// 次にピースが固定されるまでは再度ホールドできず ErrSwap を返します。
func (b *Board) TrySwapHeld() error {
	if b.gameOver {
		return fmt.Errorf("%w: %w", ErrSwap, ErrGameOver)
	}
	if !b.canSwap {
		return ErrSwap
	}
	stashed := spawn(b.current)
	if b.held != nil {
		b.current = spawn(*b.held)
		b.held = &stashed
		b.gameOver = !b.canSpawn()
	} else {
		b.held = &stashed
		b.draw()
	}
	b.canSwap = false
	return nil
}

// draw はキューの先頭を現在のピースにし、供給元からキューを1つ補充します。
// 出現位置が塞がっていればゲームオーバーです。
func (b *Board) draw() {
	next := b.queue[0]
	copy(b.queue, b.queue[1:])
	b.queue[len(b.queue)-1] = b.provider.Next()

	b.current = spawn(next)
	b.gameOver = !b.canSpawn()
}

// LockCurrentPiece は現在のピースをボードに固定し、揃ったラインを消して次のピースを出現させます。
// ゲームオーバー後は何もしません。
//
// Returns:
//
//	LockResult: 消えた行数、獲得スコア、ゲームオーバーになったか
func (b *Board) LockCurrentPiece() LockResult {
	if b.gameOver {
		return LockResult{GameOver: true}
	}

	touched := intmap.New[int, struct{}](4)
	for _, sq := range b.current.Squares {
		pos := sq.Position
		b.occupied[pos.Y][pos.X] = true
		b.cells[pos.Y][pos.X] = sq
		touched.Put(pos.Y, struct{}{})
	}

	// 上の行から順に消すことで、まだ調べていない下の行の番号がずれないようにする
	cleared := 0
	for y := BoardHeight - 1; y >= 0; y-- {
		if _, ok := touched.Get(y); !ok {
			continue
		}
		if b.rowFull(y) {
			b.clearRow(y)
			cleared++
		}
	}

	points := LineClearScore(cleared, b.level)
	b.score += points
	b.linesCleared += cleared

	b.draw()
	b.canSwap = true

	return LockResult{Rows: cleared, Points: points, GameOver: b.gameOver}
}

func (b *Board) rowFull(y int) bool {
	for x := 0; x < BoardWidth; x++ {
		if !b.occupied[y][x] {
			return false
		}
	}
	return true
}

func (b *Board) rowEmpty(y int) bool {
	for x := 0; x < BoardWidth; x++ {
		if b.occupied[y][x] {
			return false
		}
	}
	return true
}

// firstEmptyRowAbove は y より上で最初に完全に空の行を返します。見つからなければ BoardHeight。
func (b *Board) firstEmptyRowAbove(y int) int {
	for row := y + 1; row < BoardHeight; row++ {
		if b.rowEmpty(row) {
			return row
		}
	}
	return BoardHeight
}

// clearRow は y 行を消し、その上から最初の空行までを1行ずつ下に詰めます。
func (b *Board) clearRow(y int) {
	limit := b.firstEmptyRowAbove(y)
	for row := y; row < limit; row++ {
		if row+1 < BoardHeight {
			b.occupied[row] = b.occupied[row+1]
			b.cells[row] = b.cells[row+1]
			for x := range b.cells[row] {
				b.cells[row][x].Position.Y = row
			}
			continue
		}
		b.occupied[row] = [BoardWidth]bool{}
		b.cells[row] = [BoardWidth]Square{}
	}
}

// LineClearScore は同時に消えた行数とレベルからスコアを計算します。
// 1〜4行以外（0行を含む）は0点です。
func LineClearScore(rows, level int) int {
	baseScore := 0
	switch rows {
	case 1: // Single
		baseScore = 100
	case 2: // Double
		baseScore = 300
	case 3: // Triple
		baseScore = 500
	case 4: // Tetris
		baseScore = 800
	}
	return baseScore * level
}

// LevelUp はレベルを1上げます。レベルが下がることはありません。
func (b *Board) LevelUp() {
	b.level++
}

// GhostPiece は現在のピースをハードドロップした場合の着地位置のピースを返します。
func (b *Board) GhostPiece() Piece {
	ghost := b.current
	for b.allFree(ghost.Positions(), Position{Y: -1}) {
		ghost.Translate(Position{Y: -1})
	}
	return ghost
}

// CurrentPiece は落下中のピースです。
func (b *Board) CurrentPiece() Piece { return b.current }

// HeldPiece はホールド中のピースを返します。まだホールドしていなければ false です。
func (b *Board) HeldPiece() (Piece, bool) {
	if b.held == nil {
		return Piece{}, false
	}
	return *b.held, true
}

// NextPiece はキューの先頭、つまり次に出現するピースです。
func (b *Board) NextPiece() Piece { return b.queue[0] }

// Queue はキューのコピーを返します。
func (b *Board) Queue() []Piece {
	queue := make([]Piece, len(b.queue))
	copy(queue, b.queue)
	return queue
}

// CanSwapHeld は次のピースが固定されるまでにホールドできるかどうかです。
func (b *Board) CanSwapHeld() bool { return b.canSwap }

// Score は現在のスコアです。
func (b *Board) Score() int { return b.score }

// Level は現在のレベルです。
func (b *Board) Level() int { return b.level }

// LinesCleared はこれまでに消したライン数の合計です。
func (b *Board) LinesCleared() int { return b.linesCleared }

// IsGameOver はゲームオーバーかどうかを返します。一度 true になると戻りません。
func (b *Board) IsGameOver() bool { return b.gameOver }

// Occupied はそのマスが埋まっているかどうかを返します。盤面外は false です。
func (b *Board) Occupied(pos Position) bool {
	if pos.X < 0 || pos.X >= BoardWidth || pos.Y < 0 || pos.Y >= BoardHeight {
		return false
	}
	return b.occupied[pos.Y][pos.X]
}

// CellAt は固定済みのマスを返します。空なら false です。
func (b *Board) CellAt(pos Position) (Square, bool) {
	if !b.Occupied(pos) {
		return Square{}, false
	}
	return b.cells[pos.Y][pos.X], true
}

// String はボードを上の行から順にテキストで表します。固定済みのマスは色の頭文字、
// 落下中のピースは '@'、空きは '.' です。
func (b *Board) String() string {
	var sb strings.Builder
	active := make(map[Position]bool, 4)
	for _, pos := range b.current.Positions() {
		active[pos] = true
	}
	for y := BoardHeight - 1; y >= 0; y-- {
		for x := 0; x < BoardWidth; x++ {
			switch {
			case active[Position{X: x, Y: y}] && !b.gameOver:
				sb.WriteByte('@')
			case b.occupied[y][x]:
				sb.WriteByte(b.cells[y][x].Color.String()[0])
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
