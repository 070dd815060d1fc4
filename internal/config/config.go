// Package config は環境変数と .env ファイルからアプリケーションの設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/services/tetris"
)

// Config はアプリケーション全体の設定です。
type Config struct {
	Port        string
	AppEnv      string
	Seed        uint64
	SeedFromEnv bool // GAME_SEED で明示的に指定されたか
	StartLevel  int
	Game        tetris.Settings
	Keys        KeyBindings
	JWTSecret   string
	BypassAuth  bool
	CORSOrigins []string
}

// KeyBindings は操作ごとのキー名の一覧です。キー名は bubbletea の表記（"left", "ctrl+c", " " など）。
type KeyBindings struct {
	MoveLeft  []string
	MoveRight []string
	SoftDrop  []string
	HardDrop  []string
	Rotate    []string
	Hold      []string
	Quit      []string
	Restart   []string
}

// DefaultKeyBindings は標準のキー割り当てです。
func DefaultKeyBindings() KeyBindings {
	return KeyBindings{
		MoveLeft:  []string{"left", "h"},
		MoveRight: []string{"right", "l"},
		SoftDrop:  []string{"down", "j"},
		HardDrop:  []string{"space"},
		Rotate:    []string{"up", "k", "x"},
		Hold:      []string{"c"},
		Quit:      []string{"q", "ctrl+c"},
		Restart:   []string{"r"},
	}
}

// LoadDotEnv は APP_ENV が production でなければ .env を読み込みます。
// ファイルがなくてもエラーにはしません。
func LoadDotEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("[Config] warning: Error loading .env file (this is fine in production): %v", err)
	}
}

// Load は .env と環境変数から設定を組み立てます。
// 値の形式が正しくない場合は、どの変数が原因かを含むエラーを返します。
func Load() (*Config, error) {
	LoadDotEnv()
	return FromEnv()
}

// FromEnv は環境変数だけから設定を組み立てます。
func FromEnv() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		Port:        stringVar("PORT", "8080"),
		AppEnv:      os.Getenv("APP_ENV"),
		StartLevel:  p.intVar("GAME_START_LEVEL", 1),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		BypassAuth:  p.boolVar("BYPASS_AUTH", false),
		CORSOrigins: listVar("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	defaults := tetris.DefaultSettings()
	cfg.Game = tetris.Settings{
		TickInterval:     p.durationVar("GAME_TICK_INTERVAL", defaults.TickInterval),
		FallInterval:     p.durationVar("GAME_FALL_INTERVAL", defaults.FallInterval),
		SpeedFactor:      p.floatVar("GAME_SPEED_FACTOR", defaults.SpeedFactor),
		LockDelayEnabled: p.boolVar("GAME_LOCK_DELAY_ENABLED", defaults.LockDelayEnabled),
		LockDelay:        p.durationVar("GAME_LOCK_DELAY", defaults.LockDelay),
		LockDelayFactor:  p.floatVar("GAME_LOCK_DELAY_FACTOR", defaults.LockDelayFactor),
		MinLockDelay:     p.durationVar("GAME_MIN_LOCK_DELAY", defaults.MinLockDelay),
		LinesPerLevel:    p.intVar("GAME_LINES_PER_LEVEL", defaults.LinesPerLevel),
	}

	if raw, ok := os.LookupEnv("GAME_SEED"); ok && raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			p.fail("GAME_SEED", raw, err)
		}
		cfg.Seed = seed
		cfg.SeedFromEnv = true
	} else {
		cfg.Seed = ClockSeed()
		log.Printf("[Config] GAME_SEED not set, using seed %d", cfg.Seed)
	}

	keys := DefaultKeyBindings()
	cfg.Keys = KeyBindings{
		MoveLeft:  listVar("KEY_MOVE_LEFT", keys.MoveLeft),
		MoveRight: listVar("KEY_MOVE_RIGHT", keys.MoveRight),
		SoftDrop:  listVar("KEY_SOFT_DROP", keys.SoftDrop),
		HardDrop:  listVar("KEY_HARD_DROP", keys.HardDrop),
		Rotate:    listVar("KEY_ROTATE", keys.Rotate),
		Hold:      listVar("KEY_HOLD", keys.Hold),
		Quit:      listVar("KEY_QUIT", keys.Quit),
		Restart:   listVar("KEY_RESTART", keys.Restart),
	}

	if cfg.StartLevel < 1 {
		p.errs = append(p.errs, fmt.Errorf("GAME_START_LEVEL must be at least 1, got %d", cfg.StartLevel))
	}
	if err := cfg.Game.Validate(); err != nil {
		p.errs = append(p.errs, err)
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ClockSeed は現在時刻からシードを作ります。
func ClockSeed() uint64 {
	return uint64(time.Now().UnixNano())
}

// parser は環境変数の読み取りエラーをまとめて返すためのヘルパーです。
type parser struct {
	errs []error
}

func (p *parser) fail(name, raw string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", name, raw, err))
}

func (p *parser) intVar(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, raw, err)
		return def
	}
	return v
}

func (p *parser) floatVar(name string, def float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(name, raw, err)
		return def
	}
	return v
}

func (p *parser) boolVar(name string, def bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(name, raw, err)
		return def
	}
	return v
}

func (p *parser) durationVar(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(name, raw, err)
		return def
	}
	return v
}

func stringVar(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// listVar はカンマ区切りの値を読み取ります。前後の空白は取り除き、空の要素は捨てます。
func listVar(name string, def []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
