package tetris

import "errors"

// 操作の前提条件を満たさなかったことを表すエラーです。
// いずれも想定内の結果で、状態の破損を意味するものではありません。
var (
	ErrMove     = errors.New("tetris: move blocked")
	ErrRotate   = errors.New("tetris: rotation blocked")
	ErrFall     = errors.New("tetris: piece cannot fall")
	ErrSwap     = errors.New("tetris: hold already used for this piece")
	ErrGameOver = errors.New("tetris: game is over")
)
