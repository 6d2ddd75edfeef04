package main

import (
	"fmt"
	"os"

	"github.com/jbpayton/sophia-ams/internal/config"
	"github.com/jbpayton/sophia-ams/internal/mcp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %s\n", err)
		os.Exit(1)
	}

	server := mcp.NewServer(cfg.MemoryServerURL)
	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server error: %s\n", err)
		os.Exit(1)
	}
}
