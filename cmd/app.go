package cmd

import (
	"github.com/urfave/cli/v3"
)

// NewApp builds the root command. defaultConfig is the --config default.
func NewApp(defaultConfig string) *cli.Command {
	return &cli.Command{
		Name:  "aurorax",
		Usage: "Submit and manage AuroraX searches",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: defaultConfig,
			},
		},
		Commands: []*cli.Command{
			InitCommand(),
			SearchCommand(),
			RequestsCommand(),
			HistoryCommand(),
			MigrateCommand(),
			VersionCommand(),
		},
	}
}
