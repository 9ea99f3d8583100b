package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"n8n-launcher/internal/bootstrap"
)

func main() {
	headless := flag.String("headless", "", "run one action without the window: status, overview, start, stop, logs, images, paths, diagnostics")
	flag.Parse()

	app, err := bootstrap.New()
	if err != nil {
		log.Fatalf("bootstrap launcher: %v", err)
	}

	if *headless == "" {
		if err := app.Run(); err != nil {
			log.Fatalf("run launcher: %v", err)
		}
		return
	}

	out, err := runHeadless(app, *headless)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *headless, err)
		os.Exit(1)
	}
	fmt.Println(out)
}

func runHeadless(app *bootstrap.App, action string) (string, error) {
	var result interface{}
	switch action {
	case "status":
		result = map[string]interface{}{
			"docker": app.CheckDockerStatus(),
			"n8n":    app.CheckN8NStatus(),
		}
	case "overview":
		result = app.GetOverview()
	case "start":
		return app.StartN8N()
	case "stop":
		return app.StopN8N()
	case "logs":
		return app.GetN8NLogs()
	case "images":
		return app.GetN8NImages()
	case "paths":
		result = app.DebugPaths()
	case "diagnostics":
		result = app.GetDiagnostics()
	default:
		return "", fmt.Errorf("unknown action")
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
