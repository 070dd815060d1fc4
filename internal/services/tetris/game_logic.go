package tetris

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/models/tetris"
)

// Settings はゲームループの速度に関する設定です。
type Settings struct {
	TickInterval     time.Duration // ゲームループ1回の間隔
	FallInterval     time.Duration // レベル1での自動落下の間隔
	SpeedFactor      float64       // レベルが1上がるごとに落下間隔へ掛ける係数
	LockDelayEnabled bool          // 着地してから固定されるまでの猶予を使うかどうか
	LockDelay        time.Duration // レベル1での固定までの猶予時間
	LockDelayFactor  float64       // レベルが1上がるごとに猶予時間へ掛ける係数（落下より緩やか）
	MinLockDelay     time.Duration // 猶予時間の下限
	LinesPerLevel    int           // レベルアップに必要なライン数
}

// DefaultSettings は標準の速度設定を返します。
func DefaultSettings() Settings {
	return Settings{
		TickInterval:     16 * time.Millisecond,
		FallInterval:     800 * time.Millisecond,
		SpeedFactor:      0.85,
		LockDelayEnabled: true,
		LockDelay:        500 * time.Millisecond,
		LockDelayFactor:  0.95,
		MinLockDelay:     200 * time.Millisecond,
		LinesPerLevel:    2,
	}
}

// Validate は設定値が使える範囲にあるかを確認します。
func (s Settings) Validate() error {
	var errs []error
	if s.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %s", s.TickInterval))
	}
	if s.FallInterval <= 0 {
		errs = append(errs, fmt.Errorf("fall interval must be positive, got %s", s.FallInterval))
	}
	if s.SpeedFactor <= 0 || s.SpeedFactor > 1 {
		errs = append(errs, fmt.Errorf("speed factor must be in (0, 1], got %v", s.SpeedFactor))
	}
	if s.LockDelay < 0 || s.MinLockDelay < 0 {
		errs = append(errs, fmt.Errorf("lock delays must not be negative, got %s / %s", s.LockDelay, s.MinLockDelay))
	}
	if s.LockDelayFactor <= 0 || s.LockDelayFactor > 1 {
		errs = append(errs, fmt.Errorf("lock delay factor must be in (0, 1], got %v", s.LockDelayFactor))
	}
	if s.LinesPerLevel < 1 {
		errs = append(errs, fmt.Errorf("lines per level must be at least 1, got %d", s.LinesPerLevel))
	}
	return errors.Join(errs...)
}

// FallIntervalFor は指定レベルでの自動落下の間隔を返します。
// レベルが1上がるごとに SpeedFactor が1回掛かります。
func (s Settings) FallIntervalFor(level int) time.Duration {
	return scale(s.FallInterval, s.SpeedFactor, level)
}

// LockDelayFor は指定レベルでの固定までの猶予時間を返します。MinLockDelay より短くはなりません。
func (s Settings) LockDelayFor(level int) time.Duration {
	return max(s.MinLockDelay, scale(s.LockDelay, s.LockDelayFactor, level))
}

func scale(base time.Duration, factor float64, level int) time.Duration {
	if level < 1 {
		level = 1
	}
	return time.Duration(math.Round(float64(base) * math.Pow(factor, float64(level-1))))
}

// applyAction はプレイヤーの操作をボードの操作に変換して実行します。
// 失敗した操作はボードを一切変更しません。
//
// Parameters:
//
//	board  : 操作対象のボード
//	action : プレイヤーの操作
//
// Returns:
//
//	error: 操作できなかった場合はボードが返したセンチネルエラー
func applyAction(board *tetris.Board, action Action) error {
	switch action {
	case MoveLeft:
		return board.TryMove(tetris.DirLeft)
	case MoveRight:
		return board.TryMove(tetris.DirRight)
	case SoftDrop:
		return board.TryMove(tetris.DirBottom)
	case HardDrop:
		return board.TryMove(tetris.DirTop)
	case Rotate:
		return board.TryRotate()
	case Hold:
		return board.TrySwapHeld()
	default:
		return fmt.Errorf("%w: %d", ErrUnknownAction, int(action))
	}
}
