package tetris

import "math/rand/v2"

// PieceProvider は無限にピースを供給するものです。
type PieceProvider interface {
	Next() Piece
}

// BagProvider は7-bagシステムでピースを供給します。
// 1つのバッグには7種類のテトリミノが1つずつ入っており、シード付き乱数でシャッフルされます。
// 乱数生成器はバッグの補充をまたいで使い続けるため、出現順はシードだけで決まります。
type BagProvider struct {
	rng *rand.Rand
	bag []PieceType
}

// NewBagProvider はシードから BagProvider を作成します。同じシードからは同じ列が得られます。
// シードは64ビットすべてが乱数生成器の状態に使われます。
func NewBagProvider(seed uint64) *BagProvider {
	return &BagProvider{
		rng: rand.New(rand.NewPCG(seed, seed)),
	}
}

// refill は新しいバッグを作り、Fisher-Yates でシャッフルします。
func (p *BagProvider) refill() {
	p.bag = AllPieceTypes()
	p.rng.Shuffle(len(p.bag), func(i, j int) {
		p.bag[i], p.bag[j] = p.bag[j], p.bag[i]
	})
}

// Next はバッグから次のピースを取り出します。バッグが空なら先に補充します。
func (p *BagProvider) Next() Piece {
	if len(p.bag) == 0 {
		p.refill()
	}
	last := len(p.bag) - 1
	pieceType := p.bag[last]
	p.bag = p.bag[:last]
	return NewPiece(pieceType)
}

// Remaining は現在のバッグに残っているピースの数です。
func (p *BagProvider) Remaining() int {
	return len(p.bag)
}
