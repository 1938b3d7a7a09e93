package main

import (
	"context"
	"fmt"
	"os"

	chatcoord "ragstudio/chat"
	"ragstudio/client"
	"ragstudio/config"
	"ragstudio/sources"
	"ragstudio/tui/chat"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func init() {
	// Load .env file if exists
	_ = godotenv.Load()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := config.NewLogger(cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := client.New(cfg.BaseURL, client.WithLogger(log))

	srcCoord := sources.NewCoordinator(api,
		sources.WithReconcileDelay(cfg.ReconcileDelay),
		sources.WithLogger(log),
	)
	defer srcCoord.Close()

	chatCoord := chatcoord.NewCoordinator(chatcoord.ClientStreamer{Client: api},
		chatcoord.WithQueryK(cfg.QueryK),
		chatcoord.WithLogger(log),
	)
	defer chatCoord.Close()

	model := chat.InitialModel(ctx, chatCoord, srcCoord, api)
	program := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
