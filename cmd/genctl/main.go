package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/motionforge/api/cmd/genctl/commands"
	"github.com/motionforge/api/internal/poller"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	server := os.Getenv("GENCTL_SERVER")
	if server == "" {
		server = "http://localhost:8000"
	}

	commonFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "base URL of the generation server (GENCTL_SERVER)",
				Value: server,
			},
			&cli.DurationFlag{
				Name:  "request-timeout",
				Usage: "timeout of a single HTTP request",
				Value: 90 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "poll until the job succeeds, fails or times out",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "poll interval with --wait",
				Value: poller.DefaultInterval,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "give up waiting after this long",
				Value: poller.DefaultTimeout,
			},
		}
	}

	app := &cli.Command{
		Name:  "genctl",
		Usage: "submit image-to-video jobs and follow their status",
		Commands: []*cli.Command{
			{
				Name:  "submit",
				Usage: "upload an image with a prompt and start a job",
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:     "prompt",
						Usage:    "text prompt",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "image",
						Usage:    "path of the source image (jpeg, png, gif or webp)",
						Required: true,
					},
				),
				Action: commands.SubmitAction,
			},
			{
				Name:  "status",
				Usage: "show the status of a job",
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:     "job",
						Usage:    "job id returned by submit",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "adapter",
						Usage: "adapter id returned by submit (server primary when empty)",
					},
				),
				Action: commands.StatusAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
