package main

import (
	"context"
	"log"
	"os"

	"github.com/dkarpov/papersync/internal/buildinfo"
	"github.com/dkarpov/papersync/internal/client/cli"
	"github.com/dkarpov/papersync/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}
	defer app.Close()

	app.Run(ctx)

}
