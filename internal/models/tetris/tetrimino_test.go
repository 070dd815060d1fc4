package tetris

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotateClockwise_FourTimesIsIdentity(t *testing.T) {
	pivots := []Position{{0, 0}, {4, 20}, {-3, 7}, {9, 0}}
	points := []Position{{0, 0}, {1, 0}, {2, 5}, {-4, -1}, {9, 21}}

	for _, pivot := range pivots {
		for _, point := range points {
			p := point
			for i := 0; i < 4; i++ {
				p = RotateClockwise(p, pivot)
			}
			assert.Equal(t, point, p, "pivot %v point %v", pivot, point)

			c := point
			for i := 0; i < 4; i++ {
				c = RotateAroundCorner(c, pivot)
			}
			assert.Equal(t, point, c, "corner %v point %v", pivot, point)
		}
	}
}

func TestRotateClockwise_QuarterTurn(t *testing.T) {
	// 軸の右隣は軸の真下に来る
	assert.Equal(t, Position{X: 5, Y: 9}, RotateClockwise(Position{X: 6, Y: 10}, Position{X: 5, Y: 10}))
	// 軸の真上は軸の右隣に来る
	assert.Equal(t, Position{X: 6, Y: 10}, RotateClockwise(Position{X: 5, Y: 11}, Position{X: 5, Y: 10}))
}

func TestNewPiece_Catalog(t *testing.T) {
	for _, pt := range AllPieceTypes() {
		piece := NewPiece(pt)
		assert.Equal(t, pt, piece.Type)
		assert.Equal(t, 0, piece.Rotation)

		seen := make(map[Position]bool)
		for _, sq := range piece.Squares {
			assert.Equal(t, ColorOf(pt), sq.Color)
			assert.False(t, seen[sq.Position], "%s has duplicate square %v", pt, sq.Position)
			seen[sq.Position] = true
		}

		// 同じ種類からは同じピースが作られる
		assert.Empty(t, cmp.Diff(piece, NewPiece(pt)))
	}

	assert.Equal(t, PivotPoint, NewPiece(TypeO).Pivot.Kind)
	assert.Equal(t, PivotPoint, NewPiece(TypeI).Pivot.Kind)
	assert.Equal(t, PivotCell, NewPiece(TypeT).Pivot.Kind)
}

func TestNewPiece_UnknownTypePanics(t *testing.T) {
	assert.Panics(t, func() { NewPiece(PieceType(42)) })
}

func TestPiece_RotateFourTimesIsIdentity(t *testing.T) {
	for _, pt := range AllPieceTypes() {
		piece := NewPiece(pt)
		piece.Translate(PlayPoint)
		original := piece

		for i := 0; i < 4; i++ {
			piece.Rotate()
		}
		assert.Equal(t, original.Positions(), piece.Positions(), "type %s", pt)
		assert.Equal(t, 0, piece.Rotation)
	}
}

func TestPiece_RotateCellPivotStaysPut(t *testing.T) {
	piece := NewPiece(TypeT)
	piece.Translate(Position{X: 4, Y: 10})
	center := piece.Squares[0].Position

	piece.Rotate()
	assert.Equal(t, center, piece.Squares[0].Position)
	assert.Equal(t, 1, piece.Rotation)
	// T の上に出ていたマスは右に倒れる
	assert.Contains(t, piece.Positions(), Position{X: 5, Y: 10})
}

func TestPiece_RotateSquareKeepsCells(t *testing.T) {
	piece := NewPiece(TypeO)
	piece.Translate(PlayPoint)
	before := piece.Positions()

	piece.Rotate()
	rotated := piece.RotatedPositions()
	assert.ElementsMatch(t, before[:], rotated[:])
	after := piece.Positions()
	assert.ElementsMatch(t, before[:], after[:])
}

func TestPiece_RotateStraightIsVertical(t *testing.T) {
	piece := NewPiece(TypeI)
	piece.Translate(Position{X: 4, Y: 10})

	piece.Rotate()
	positions := piece.Positions()
	for _, pos := range positions {
		assert.Equal(t, positions[0].X, pos.X)
	}
}

func TestPiece_TranslateMovesPivotPoint(t *testing.T) {
	piece := NewPiece(TypeI)
	piece.Translate(Position{X: 3, Y: -2})

	assert.Equal(t, Position{X: 3, Y: -2}, piece.Pivot.Point)
	assert.Equal(t, Position{X: 2, Y: -2}, piece.Squares[0].Position)

	cell := NewPiece(TypeS)
	cell.Translate(Position{X: 3, Y: -2})
	assert.Equal(t, Position{}, cell.Pivot.Point)
}

func TestPiece_SameType(t *testing.T) {
	a := NewPiece(TypeZ)
	b := NewPiece(TypeZ)
	b.Translate(Position{X: 2, Y: 2})
	b.Rotate()

	assert.True(t, a.SameType(b))
	assert.False(t, a.SameType(NewPiece(TypeS)))
}

func TestPieceType_Text(t *testing.T) {
	for _, pt := range AllPieceTypes() {
		parsed, ok := StringToPieceType(PieceTypeToString(pt))
		require.True(t, ok)
		assert.Equal(t, pt, parsed)
	}

	_, ok := StringToPieceType("X")
	assert.False(t, ok)
	assert.Equal(t, "?", PieceTypeToString(PieceType(-1)))

	data, err := json.Marshal([]PieceType{TypeI, TypeO})
	require.NoError(t, err)
	assert.JSONEq(t, `["I","O"]`, string(data))
}

func TestColor_Text(t *testing.T) {
	data, err := json.Marshal(map[string]Color{"a": ColorCyan, "b": ColorNone})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"cyan","b":""}`, string(data))

	var c Color
	require.NoError(t, c.UnmarshalText([]byte("orange")))
	assert.Equal(t, ColorOrange, c)
	assert.Error(t, c.UnmarshalText([]byte("magenta")))
}
