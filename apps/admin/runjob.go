package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/trezcool/quizhub/core/job"
)

var errUserRequired = errors.New("-user is required for export_scores")

// runJob enqueues a job for the worker. It does not wait for the job to run.
func (cli *commandLine) runJob(kind string, userID int, format string) error {
	ctx := context.Background()

	var payload interface{}
	var requestedBy *int
	if kind == job.KindExportScores {
		if userID <= 0 {
			return errUserRequired
		}
		if _, err := cli.svcs.Users.GetByID(ctx, userID); err != nil {
			return err
		}
		payload = job.ExportPayload{UserID: userID, Format: format}
		requestedBy = &userID
	}

	id, err := cli.svcs.Jobs.Dispatch(ctx, kind, payload, requestedBy)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s job %s enqueued\n", kind, id)
	return nil
}
