package cmd

import (
	"fmt"
	"io"
	"os"

	"dlpage/controller"
	"dlpage/platform"
	"dlpage/render"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func renderCmd() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "Render the download page once",
		Description: `Fetches the feeds of a release channel and writes the rendered
download page to stdout or a file.

Useful for publishing the page as a static file. Exits with an error when
the feeds could not be loaded, after writing the failure page.`,
		Flags: append(feedFlags(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "File to write the page to, stdout when empty",
			},
			&cli.StringFlag{
				Name:  "tab",
				Usage: "Installer tab selected initially, e.g. #osx",
			},
			&cli.BoolFlag{
				Name:  "fragment-only",
				Usage: "Only write the download listing, without the page layout",
			},
		),
		Action: func(ctx *cli.Context) error {
			// Keep stdout for the page
			log.SetOutput(os.Stderr)

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			ch, err := selectChannel(ctx, cfg)
			if err != nil {
				return err
			}

			renderer, err := render.New(
				render.WithNotices(cfg.Notices),
				render.WithIssuesURL(cfg.IssuesURL),
			)
			if err != nil {
				return err
			}

			page := controller.New(ch, newFeedCache(ctx), renderer).Load(ctx.Context)

			var out io.Writer = os.Stdout
			if path := ctx.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("could not create output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			if ctx.Bool("fragment-only") {
				if _, err := io.WriteString(out, string(page.HTML)); err != nil {
					return err
				}
			} else {
				pkgName := platform.SelectPackage(ctx.String("tab"), "")
				if err := renderer.Page(out, render.PageView{
					Package: pkgName,
					Body:    page.HTML,
				}); err != nil {
					return err
				}
			}

			if page.State == controller.StateFailed {
				return fmt.Errorf("could not list the download links: %w", page.Err)
			}
			return nil
		},
	}
}
