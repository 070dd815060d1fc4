package main

import (
	"flag"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}

	seed := flag.Uint64("seed", cfg.Seed, "piece generator seed (default: GAME_SEED or the clock)")
	level := flag.Int("level", cfg.StartLevel, "starting level")
	flag.Parse()

	if *level < 1 {
		log.Fatalf("-level must be at least 1, got %d", *level)
	}

	// 画面を崩さないようにログはファイルへ。DEBUG が無ければ捨てる
	if os.Getenv("DEBUG") != "" {
		f, err := tea.LogToFile("tetris.log", "tetris")
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	log.Printf("starting game (seed=%d, level=%d)", *seed, *level)
	if err := tui.Run(cfg, *seed, *level); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal(err)
	}
}
