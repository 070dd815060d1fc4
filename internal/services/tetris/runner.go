package tetris

import (
	"context"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/models/tetris"
)

// Run はセッションのゲームループです。TickInterval ごとに経過時間を測り、
// その時点で inputs に溜まっている操作だけを取り出して Tick に渡します。
// 状態が変わるたびに publish にスナップショットを渡します（publish は nil でもよい）。
//
// ゲームオーバーになると nil を、ctx がキャンセルされると ctx.Err() を返します。
func (s *Session) Run(ctx context.Context, inputs <-chan Action, publish func(tetris.Snapshot)) error {
	if publish == nil {
		publish = func(tetris.Snapshot) {}
	}
	publish(s.Snapshot())
	if s.IsGameOver() {
		return nil
	}

	ticker := time.NewTicker(s.settings.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now

			res := s.Tick(elapsed, drain(inputs)...)
			if res.Changed || res.GameOver {
				publish(s.Snapshot())
			}
			if res.GameOver {
				return nil
			}
		}
	}
}

// drain は呼び出し時点でチャネルにある操作だけをブロックせずに取り出します。
// 後から届いた操作は次の Tick に回ります。
func drain(inputs <-chan Action) []Action {
	n := len(inputs)
	if n == 0 {
		return nil
	}
	actions := make([]Action, 0, n)
	for i := 0; i < n; i++ {
		select {
		case a, ok := <-inputs:
			if !ok {
				return actions
			}
			actions = append(actions, a)
		default:
			return actions
		}
	}
	return actions
}
