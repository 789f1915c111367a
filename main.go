package main

import (
	"context"
	"log"
	"os"

	"github.com/rubiojr/aurorax/cmd"
	"github.com/rubiojr/aurorax/pkg/config"
)

func main() {
	app := cmd.NewApp(getDefaultConfigPathOrExit())
	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		log.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
