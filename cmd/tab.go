package cmd

import (
	"fmt"

	"dlpage/platform"

	"github.com/urfave/cli/v2"
)

func tabCmd() *cli.Command {
	return &cli.Command{
		Name:  "tab",
		Usage: "Print the installer tab selected for a visitor",
		Description: `Prints the installer tab a visitor sees first, chosen from the
URL fragment when it names a known tab and from the browser user agent
otherwise.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "fragment",
				Usage: "URL fragment, e.g. #osx",
			},
			&cli.StringFlag{
				Name:    "user-agent",
				Aliases: []string{"u"},
				Usage:   "Browser user agent",
			},
		},
		Action: func(ctx *cli.Context) error {
			pkgName := platform.SelectPackage(ctx.String("fragment"), ctx.String("user-agent"))
			fmt.Fprintln(ctx.App.Writer, pkgName)
			return nil
		},
	}
}
