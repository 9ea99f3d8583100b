package main

import (
	"embed"
	"log"

	"n8n-launcher/internal/bootstrap"
)

//go:embed all:frontend
var appAssets embed.FS

func main() {
	app, err := bootstrap.NewWithAssets(appAssets)
	if err != nil {
		log.Fatalf("bootstrap launcher: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run launcher: %v", err)
	}
}
