package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"dlpage/controller"
	"dlpage/render"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func releasesCmd() *cli.Command {
	return &cli.Command{
		Name:  "releases",
		Usage: "Print the releases that would be listed",
		Description: `Fetches the feeds of a release channel and prints every release
of the last year, newest first, with the download links of its installers.

Returns each release as a JSON object on a single line. Use a tool like jq to
process the output.

Prints all other log messages to stderr.`,
		Flags: append(feedFlags(),
			&cli.BoolFlag{
				Name:  "cloud",
				Usage: "Print the cloud image releases instead",
			},
		),
		Action: func(ctx *cli.Context) error {
			// Disable logging to stdout
			log.SetOutput(os.Stderr)

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			ch, err := selectChannel(ctx, cfg)
			if err != nil {
				return err
			}

			renderer, err := render.New()
			if err != nil {
				return err
			}

			feeds, err := controller.New(ch, newFeedCache(ctx), renderer).LoadFeeds(ctx.Context)
			if err != nil {
				return fmt.Errorf("could not load release feeds: %w", err)
			}

			if ctx.Bool("cloud") {
				for _, c := range feeds.Cloud {
					printStdout(c)
				}
				return nil
			}
			for _, r := range feeds.Releases {
				printStdout(r)
			}
			return nil
		},
	}
}

func printStdout(v interface{}) {
	// Print as single JSON string on a single line
	line, err := json.Marshal(v)
	if err == nil {
		fmt.Println(string(line))
	}
}
