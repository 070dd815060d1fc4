package tetris

import (
	"errors"
	"fmt"
)

// Action はプレイヤーの1回の操作です。
type Action int

const (
	MoveLeft Action = iota
	MoveRight
	SoftDrop
	HardDrop
	Rotate
	Hold
)

// ErrUnknownAction は定義されていない操作名を受け取ったときのエラーです。
var ErrUnknownAction = errors.New("unknown action")

var actionNames = [...]string{
	MoveLeft:  "move_left",
	MoveRight: "move_right",
	SoftDrop:  "soft_drop",
	HardDrop:  "hard_drop",
	Rotate:    "rotate",
	Hold:      "hold",
}

// AllActions は全ての操作を定義順で返します。
func AllActions() []Action {
	return []Action{MoveLeft, MoveRight, SoftDrop, HardDrop, Rotate, Hold}
}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionNames[a]
}

// ParseAction は "move_left" などの操作名を Action に変換します。
func ParseAction(name string) (Action, error) {
	for i, n := range actionNames {
		if n == name {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

func (a Action) MarshalText() ([]byte, error) {
	if a < 0 || int(a) >= len(actionNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, int(a))
	}
	return []byte(actionNames[a]), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// PlayerInputEvent はクライアントから WebSocket で届く操作メッセージです。
// 例: {"action": "rotate"}
type PlayerInputEvent struct {
	UserID string `json:"-"` // 送信元のユーザーID。メッセージ本文ではなく接続から設定される
	Action Action `json:"action"`
}
