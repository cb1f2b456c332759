package main

import (
	"context"
	"fmt"
	"text/tabwriter"
)

// auditAnswers prints the questions no answer can ever match.
func (cli *commandLine) auditAnswers() error {
	questions, err := cli.svcs.Catalog.AuditCorrectOptions(context.Background())
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		fmt.Fprintln(cli.out, "every correct option resolves")
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "QUESTION\tQUIZ\tCORRECT OPTION\tSTATEMENT")
	for _, q := range questions {
		fmt.Fprintf(w, "%d\t%d\t%q\t%s\n", q.ID, q.QuizID, q.CorrectOption, q.Statement)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d unresolvable question(s)\n", len(questions))
	return nil
}
