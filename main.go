package main

import (
	"log"
	"os"

	"github.com/nofendian17/polyinsider/app"
	"github.com/nofendian17/polyinsider/config"
)

func main() {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Printf("❌ Configuration error: %v", err)
		os.Exit(1)
	}

	application := app.New(cfg)
	os.Exit(application.Run())
}
