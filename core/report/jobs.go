package report

import (
	"context"
	"fmt"
	"net/mail"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/attempt"
	"github.com/trezcool/quizhub/core/job"
	"github.com/trezcool/quizhub/core/scoring"
	"github.com/trezcool/quizhub/core/user"
)

const monthlyWindow = 30 * 24 * time.Hour

// JobHandlers maps every job kind to the function running it.
func (svc *Service) JobHandlers() map[string]job.Handler {
	return map[string]job.Handler{
		job.KindDailyReminder: svc.runDailyReminder,
		job.KindMonthlyReport: svc.runMonthlyReport,
		job.KindExportScores:  svc.runExportScores,
	}
}

// batchResult summarizes a per-user batch; failures are counted, never fatal.
func batchResult(sent, failed int) string {
	return fmt.Sprintf("sent=%d failed=%d", sent, failed)
}

// runDailyReminder emails every student who has not attempted a quiz since local midnight.
func (svc *Service) runDailyReminder(ctx context.Context, _ job.Job) (string, error) {
	students, err := svc.students(ctx)
	if err != nil {
		return "", errors.Wrap(err, "querying students")
	}
	since := core.StartOfDay(NowFunc())
	todays, err := svc.attempts.Query(ctx, attempt.Filter{Since: &since})
	if err != nil {
		return "", errors.Wrap(err, "querying today's scores")
	}
	attempted := make(map[int]bool, len(todays))
	for _, s := range todays {
		attempted[s.UserID] = true
	}

	var sent, failed int
	for _, usr := range students {
		if attempted[usr.ID] {
			continue
		}
		err := svc.mailSvc.Send(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
			Subject:      "Daily Quiz Reminder",
			TemplateName: "daily_reminder",
			TemplateData: map[string]interface{}{"Name": usr.DisplayName()},
		})
		if err != nil {
			failed++
			svc.logger.Error(fmt.Sprintf("report.runDailyReminder: user %d", usr.ID), err, personOf(usr))
			continue
		}
		sent++
	}
	return batchResult(sent, failed), nil
}

type monthlySummary struct {
	QuizzesTaken int
	AverageScore float64
	TotalScore   int
}

// runMonthlyReport emails every student with attempts in the last 30 days a summary of them.
func (svc *Service) runMonthlyReport(ctx context.Context, _ job.Job) (string, error) {
	students, err := svc.students(ctx)
	if err != nil {
		return "", errors.Wrap(err, "querying students")
	}
	since := NowFunc().Add(-monthlyWindow)
	scores, err := svc.attempts.Query(ctx, attempt.Filter{Since: &since})
	if err != nil {
		return "", errors.Wrap(err, "querying scores")
	}
	summaries := make(map[int]*monthlySummary)
	for _, s := range scores {
		sum, ok := summaries[s.UserID]
		if !ok {
			sum = new(monthlySummary)
			summaries[s.UserID] = sum
		}
		sum.QuizzesTaken++
		sum.TotalScore += s.TotalScored
	}

	var sent, failed int
	for _, usr := range students {
		sum, ok := summaries[usr.ID]
		if !ok {
			continue
		}
		sum.AverageScore = scoring.Round(float64(sum.TotalScore)/float64(sum.QuizzesTaken), 2)
		err := svc.mailSvc.Send(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
			Subject:      "Monthly Activity Report",
			TemplateName: "monthly_report",
			TemplateData: map[string]interface{}{
				"Name":         usr.DisplayName(),
				"QuizzesTaken": sum.QuizzesTaken,
				"AverageScore": sum.AverageScore,
				"TotalScore":   sum.TotalScore,
			},
		})
		if err != nil {
			failed++
			svc.logger.Error(fmt.Sprintf("report.runMonthlyReport: user %d", usr.ID), err, personOf(usr))
			continue
		}
		sent++
	}
	return batchResult(sent, failed), nil
}

func (svc *Service) runExportScores(ctx context.Context, j job.Job) (string, error) {
	var p job.ExportPayload
	if err := j.Decode(&p); err != nil {
		return "", errors.Wrap(err, "decoding payload")
	}
	name, err := svc.ExportScores(ctx, p.UserID, p.Format)
	if err != nil {
		return "", err
	}

	recipient := p.UserID
	if j.RequestedBy.Valid {
		recipient = j.RequestedBy.Int
	}
	if err := svc.mailExport(ctx, recipient, j.ID.String(), name); err != nil {
		// the file stays downloadable
		svc.logger.Error(fmt.Sprintf("report.runExportScores: user %d", recipient), err)
	}
	return name, nil
}

// mailExport sends a generated export to the user as an attachment.
func (svc *Service) mailExport(ctx context.Context, userID int, jobID, name string) error {
	usr, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "getting recipient")
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      "Your quiz data export",
		TemplateName: "export_ready",
		TemplateData: map[string]interface{}{"Name": usr.DisplayName(), "Filename": name, "JobID": jobID},
	}
	if err := msg.AttachFile(filepath.Join(svc.exportDir, name), exportContentType(name)); err != nil {
		return errors.Wrap(err, "attaching export")
	}
	return svc.mailSvc.Send(msg)
}

func personOf(usr user.User) core.Person {
	return core.Person{ID: fmt.Sprint(usr.ID), Email: usr.Email}
}
