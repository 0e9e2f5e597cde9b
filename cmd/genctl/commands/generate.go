package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/motionforge/api/internal/model"
	"github.com/motionforge/api/internal/poller"
)

// Exit codes
const (
	ExitJobFailed = 2
	ExitTimeout   = 3
)

// SubmitAction uploads an image and prompt and optionally waits for the result
func SubmitAction(ctx context.Context, cmd *cli.Command) error {
	client := NewAPIClient(cmd.String("server"), cmd.Duration("request-timeout"))

	handle, err := client.Submit(ctx, cmd.String("prompt"), cmd.String("image"))
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}

	fmt.Printf("job:     %s\n", handle.JobID)
	fmt.Printf("adapter: %s\n", handle.AdapterID)
	fmt.Printf("status:  %s\n", handle.Status)

	if !cmd.Bool("wait") {
		return nil
	}
	return waitAndReport(ctx, os.Stdout, client, handle.JobID, handle.AdapterID, pollerFromFlags(cmd))
}

// StatusAction prints the status of a job and optionally waits for the result
func StatusAction(ctx context.Context, cmd *cli.Command) error {
	client := NewAPIClient(cmd.String("server"), cmd.Duration("request-timeout"))
	jobID := cmd.String("job")
	adapterID := cmd.String("adapter")

	if cmd.Bool("wait") {
		return waitAndReport(ctx, os.Stdout, client, jobID, adapterID, pollerFromFlags(cmd))
	}

	status, err := client.Status(ctx, jobID, adapterID)
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	printStatus(os.Stdout, status)
	if status.State == model.JobStateFailed {
		return cli.Exit("job failed: "+status.FailureReason, ExitJobFailed)
	}
	return nil
}

func pollerFromFlags(cmd *cli.Command) poller.Poller {
	return poller.Poller{
		Interval:             cmd.Duration("interval"),
		Timeout:              cmd.Duration("timeout"),
		Monotonic:            true,
		MaxConsecutiveErrors: 3,
	}
}

// waitAndReport polls until the job finishes, printing every update.
// FAILED and timeouts are reported through distinct exit codes.
func waitAndReport(ctx context.Context, w io.Writer, client *APIClient, jobID, adapterID string, p poller.Poller) error {
	fetch := func(ctx context.Context) (*model.NormalizedStatus, error) {
		return client.Status(ctx, jobID, adapterID)
	}
	onUpdate := func(attempt int, status *model.NormalizedStatus) {
		fmt.Fprintf(w, "[%d] %s %s\n", attempt, status.State, formatProgress(status.Progress))
	}

	final, err := p.Wait(ctx, fetch, onUpdate)
	if err != nil {
		var timeoutErr *poller.TimeoutError
		if errors.As(err, &timeoutErr) {
			return cli.Exit(timeoutErr.Error(), ExitTimeout)
		}
		return fmt.Errorf("wait failed: %w", err)
	}

	printStatus(w, final)
	if final.State == model.JobStateFailed {
		return cli.Exit("job failed: "+final.FailureReason, ExitJobFailed)
	}
	return nil
}

func printStatus(w io.Writer, status *model.NormalizedStatus) {
	fmt.Fprintf(w, "state:    %s\n", status.State)
	fmt.Fprintf(w, "progress: %s\n", formatProgress(status.Progress))
	if status.VideoURL != "" {
		fmt.Fprintf(w, "video:    %s\n", status.VideoURL)
	}
	if status.FailureReason != "" {
		fmt.Fprintf(w, "failure:  %s\n", status.FailureReason)
	}
}

func formatProgress(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *p*100)
}
