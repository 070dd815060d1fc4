package tetris

import "fmt"

// PieceType はテトリミノの種類を表します。
type PieceType int

const (
	TypeT PieceType = iota // 0: T-ミノ
	TypeJ                  // 1: J-ミノ (LeftL)
	TypeL                  // 2: L-ミノ (RightL)
	TypeS                  // 3: S-ミノ (LeftSkew)
	TypeZ                  // 4: Z-ミノ (RightSkew)
	TypeO                  // 5: O-ミノ (Square)
	TypeI                  // 6: I-ミノ (Straight)
)

// PieceTypeCount はテトリミノの種類数です。1つのバッグにはこの数のピースが入ります。
const PieceTypeCount = 7

// AllPieceTypes は全テトリミノの種類を定義順で返します。
func AllPieceTypes() []PieceType {
	return []PieceType{TypeT, TypeJ, TypeL, TypeS, TypeZ, TypeO, TypeI}
}

// Color はマスの色を表します。純粋に見た目のためのタグで、ピースの種類ごとに1色です。
// ColorNone は「色がない」＝空のマスを意味します。
type Color int

const (
	ColorNone Color = iota
	ColorPurple
	ColorBlue
	ColorOrange
	ColorGreen
	ColorRed
	ColorYellow
	ColorCyan
)

var colorNames = map[Color]string{
	ColorNone:   "",
	ColorPurple: "purple",
	ColorBlue:   "blue",
	ColorOrange: "orange",
	ColorGreen:  "green",
	ColorRed:    "red",
	ColorYellow: "yellow",
	ColorCyan:   "cyan",
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Color(%d)", int(c))
}

// MarshalText は色名を JSON などに書き出します。空のマスは空文字列になります。
func (c Color) MarshalText() ([]byte, error) {
	name, ok := colorNames[c]
	if !ok {
		return nil, fmt.Errorf("unknown color %d", int(c))
	}
	return []byte(name), nil
}

// UnmarshalText は MarshalText の逆変換です。
func (c *Color) UnmarshalText(text []byte) error {
	for color, name := range colorNames {
		if name == string(text) {
			*c = color
			return nil
		}
	}
	return fmt.Errorf("unknown color %q", text)
}

// Position はグリッド上の整数座標です。X は列（0 が左）、Y は行（0 が最下段）。
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add は2つの座標を足し合わせた座標を返します。
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y}
}

// RotateClockwise は point を pivot の周りに時計回りに90度回転させた座標を返します。
// sin = 1, cos = 0 の特殊ケースなので整数演算だけで厳密に計算できます。
func RotateClockwise(point, pivot Position) Position {
	return Position{
		X: point.Y - pivot.Y + pivot.X,
		Y: -(point.X - pivot.X) + pivot.Y,
	}
}

// RotateAroundCorner は point を、セル corner の左上の格子点 (corner.X-½, corner.Y+½)
// の周りに時計回りに90度回転させます。中心がセルとセルの間にあるピース用です。
func RotateAroundCorner(point, corner Position) Position {
	rotated := RotateClockwise(point, corner)
	rotated.X--
	return rotated
}

// Square はピースやボードを構成する1マス（座標＋色）です。
type Square struct {
	Position Position `json:"position"`
	Color    Color    `json:"color"`
}

// PivotKind は回転軸の種類です。
type PivotKind int

const (
	// PivotCell はピース自身の先頭マス (Squares[0]) を軸に回転します。
	PivotCell PivotKind = iota
	// PivotPoint はピースと一緒に平行移動する固定点を軸に回転します。
	// O-ミノと I-ミノのように中心がマスの間にあるピースで使います。
	PivotPoint
)

// Pivot はピースの回転軸です。Point は PivotPoint の場合のみ使われます。
type Pivot struct {
	Kind  PivotKind
	Point Position
}

// Piece は4つのマス、回転軸、種類からなるテトリミノです。
// Rotation は 0..3 の回転フェーズで、ホールド時に 0 に戻ります。
type Piece struct {
	Type     PieceType `json:"type"`
	Squares  [4]Square `json:"squares"`
	Pivot    Pivot     `json:"-"`
	Rotation int       `json:"rotation"`
}

// Positions はピースの4マスの座標を返します。
func (p Piece) Positions() [4]Position {
	var positions [4]Position
	for i, sq := range p.Squares {
		positions[i] = sq.Position
	}
	return positions
}

// SameType は2つのピースが同じ種類かどうかを返します。位置や回転は比較しません。
func (p Piece) SameType(other Piece) bool {
	return p.Type == other.Type
}

// Translate はピース全体（PivotPoint の場合は軸も）を offset だけ平行移動します。
// 衝突判定は行いません。それはボードの責務です。
func (p *Piece) Translate(offset Position) {
	for i := range p.Squares {
		p.Squares[i].Position = p.Squares[i].Position.Add(offset)
	}
	if p.Pivot.Kind == PivotPoint {
		p.Pivot.Point = p.Pivot.Point.Add(offset)
	}
}

// RotatedPositions は時計回りに90度回転した後の4マスの座標を返します。ピース自体は変更しません。
func (p Piece) RotatedPositions() [4]Position {
	var rotated [4]Position
	switch p.Pivot.Kind {
	case PivotPoint:
		for i, sq := range p.Squares {
			rotated[i] = RotateAroundCorner(sq.Position, p.Pivot.Point)
		}
	default:
		// 軸は毎回その時点の先頭マスの位置から求める
		center := p.Squares[0].Position
		for i, sq := range p.Squares {
			rotated[i] = RotateClockwise(sq.Position, center)
		}
	}
	return rotated
}

// Rotate はピースを時計回りに90度回転させます。移動先が空いているかは確認しません。
func (p *Piece) Rotate() {
	rotated := p.RotatedPositions()
	for i := range p.Squares {
		p.Squares[i].Position = rotated[i]
	}
	p.Rotation = (p.Rotation + 1) % 4
}

type pieceShape struct {
	color   Color
	offsets [4]Position
	pivot   Pivot
}

// pieceShapes は各テトリミノの出現時の形です。座標は出現アンカー (0,0) からの相対値。
// PivotCell のピースは中心マスを先頭に置き、回転しても先頭マスが動かないようにしています。
var pieceShapes = map[PieceType]pieceShape{
	TypeT: {ColorPurple, [4]Position{{0, 0}, {-1, 0}, {1, 0}, {0, 1}}, Pivot{Kind: PivotCell}},
	TypeJ: {ColorBlue, [4]Position{{0, 0}, {-1, 0}, {1, 0}, {-1, 1}}, Pivot{Kind: PivotCell}},
	TypeL: {ColorOrange, [4]Position{{0, 0}, {-1, 0}, {1, 0}, {1, 1}}, Pivot{Kind: PivotCell}},
	TypeS: {ColorGreen, [4]Position{{0, 0}, {-1, 0}, {0, 1}, {1, 1}}, Pivot{Kind: PivotCell}},
	TypeZ: {ColorRed, [4]Position{{0, 0}, {1, 0}, {0, 1}, {-1, 1}}, Pivot{Kind: PivotCell}},
	TypeO: {ColorYellow, [4]Position{{0, 0}, {1, 0}, {0, 1}, {1, 1}}, Pivot{Kind: PivotPoint, Point: Position{1, 0}}},
	TypeI: {ColorCyan, [4]Position{{-1, 0}, {0, 0}, {1, 0}, {2, 0}}, Pivot{Kind: PivotPoint, Point: Position{0, 0}}},
}

// NewPiece は指定された種類のテトリミノを出現アンカー (0,0) 基準で生成します。
// 同じ種類からは常に同じピースが生成されます。
func NewPiece(t PieceType) Piece {
	shape, ok := pieceShapes[t]
	if !ok {
		panic(fmt.Sprintf("tetris: unknown piece type %d", int(t)))
	}
	piece := Piece{Type: t, Pivot: shape.pivot}
	for i, offset := range shape.offsets {
		piece.Squares[i] = Square{Position: offset, Color: shape.color}
	}
	return piece
}

// ColorOf はピースの種類に対応する色を返します。
func ColorOf(t PieceType) Color {
	return pieceShapes[t].color
}

// StringToPieceType は文字列のテトリミノタイプ（"I", "O", "T"など）をPieceTypeに変換します。
func StringToPieceType(s string) (PieceType, bool) {
	switch s {
	case "T":
		return TypeT, true
	case "J":
		return TypeJ, true
	case "L":
		return TypeL, true
	case "S":
		return TypeS, true
	case "Z":
		return TypeZ, true
	case "O":
		return TypeO, true
	case "I":
		return TypeI, true
	default:
		return TypeT, false
	}
}

// PieceTypeToString はPieceTypeを文字列表現に変換します。
func PieceTypeToString(t PieceType) string {
	switch t {
	case TypeT:
		return "T"
	case TypeJ:
		return "J"
	case TypeL:
		return "L"
	case TypeS:
		return "S"
	case TypeZ:
		return "Z"
	case TypeO:
		return "O"
	case TypeI:
		return "I"
	default:
		return "?"
	}
}

func (t PieceType) String() string {
	return PieceTypeToString(t)
}

// MarshalText はテトリミノの種類を "T" などの1文字で書き出します。
func (t PieceType) MarshalText() ([]byte, error) {
	if _, ok := pieceShapes[t]; !ok {
		return nil, fmt.Errorf("unknown piece type %d", int(t))
	}
	return []byte(PieceTypeToString(t)), nil
}

func (t *PieceType) UnmarshalText(text []byte) error {
	parsed, ok := StringToPieceType(string(text))
	if !ok {
		return fmt.Errorf("unknown piece type %q", text)
	}
	*t = parsed
	return nil
}
