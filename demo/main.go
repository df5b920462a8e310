package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"reelgen/demo/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("url", "http://localhost:8080", "Reel API URL")
	script := flag.String("script", "", "Script to narrate")
	scriptFile := flag.String("file", "", "Read the script from a file")
	flag.Parse()

	text := *script
	if *scriptFile != "" {
		data, err := os.ReadFile(*scriptFile)
		if err != nil {
			fmt.Printf("Error reading script: %v\n", err)
			os.Exit(1)
		}
		text = string(data)
	}

	program := tea.NewProgram(tui.NewModel(strings.TrimRight(*apiURL, "/"), strings.TrimSpace(text)))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
