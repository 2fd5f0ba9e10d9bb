package rpp

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/period"
	"github.com/trezcool/kinerja/core/user"
)

// notifier emails reviewers and teachers after committed transitions. Failures are only logged.
type notifier struct {
	users   user.Repository
	periods period.Repository
	mailSvc core.EmailService
	logger  core.Logger
}

func (n *notifier) periodName(ctx context.Context, id string) string {
	p, err := n.periods.GetPeriod(ctx, id)
	if err != nil {
		n.logger.Warn(fmt.Sprintf("notify: getting period %s: %v", id, err), err)
		return ""
	}
	return p.Name()
}

// reviewers returns who reviews the submissions of teacher.
func (n *notifier) reviewers(ctx context.Context, teacher user.User) ([]user.User, error) {
	active := true
	filter := &user.QueryFilter{IsActive: &active}
	if teacher.IsKepalaSekolah() {
		filter.Roles = []string{user.RoleAdmin}
	} else {
		if teacher.OrganizationID == "" {
			return nil, nil
		}
		filter.Roles = []string{user.RoleKepalaSekolah}
		filter.OrganizationID = teacher.OrganizationID
	}
	candidates, err := n.users.QueryUsers(ctx, filter, nil)
	if err != nil {
		return nil, err
	}
	revs := make([]user.User, 0, len(candidates))
	for _, u := range candidates {
		if CanReview(u.Identity(), teacher) && u.Email != "" {
			revs = append(revs, u)
		}
	}
	return revs, nil
}

func (n *notifier) submitted(ctx context.Context, s Submission) {
	teacher, err := n.users.GetUser(ctx, user.GetFilter{ID: s.TeacherID})
	if err != nil {
		n.logger.Warn(fmt.Sprintf("notify: getting teacher %s: %v", s.TeacherID, err), err)
		return
	}
	revs, err := n.reviewers(ctx, teacher)
	if err != nil {
		n.logger.Warn(fmt.Sprintf("notify: querying reviewers of %s: %v", s.ID, err), err)
		return
	}
	if len(revs) == 0 {
		return
	}

	periodName := n.periodName(ctx, s.PeriodID)
	msgs := make([]*core.EmailMessage, 0, len(revs))
	for _, rev := range revs {
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: rev.Name, Address: rev.Email}},
			Subject:      "RPP submitted for review",
			TemplateName: "rpp_submitted",
			TemplateData: map[string]string{
				"ReviewerName": rev.Name,
				"TeacherName":  teacher.Name,
				"PeriodName":   periodName,
				"SubmissionID": s.ID,
			},
		})
	}
	n.mailSvc.SendMessages(msgs...)
}

func (n *notifier) reviewed(ctx context.Context, s Submission) {
	teacher, err := n.users.GetUser(ctx, user.GetFilter{ID: s.TeacherID})
	if err != nil {
		n.logger.Warn(fmt.Sprintf("notify: getting teacher %s: %v", s.TeacherID, err), err)
		return
	}
	if teacher.Email == "" {
		return
	}
	var reviewerName string
	if s.ReviewerID != "" {
		if rev, err := n.users.GetUser(ctx, user.GetFilter{ID: s.ReviewerID}); err == nil {
			reviewerName = rev.Name
		}
	}

	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: teacher.Name, Address: teacher.Email}},
		Subject:      "RPP submission " + s.Status,
		TemplateName: "rpp_reviewed",
		TemplateData: map[string]string{
			"TeacherName":  teacher.Name,
			"PeriodName":   n.periodName(ctx, s.PeriodID),
			"ReviewerName": reviewerName,
			"Status":       s.Status,
			"Notes":        s.ReviewNotes,
			"SubmissionID": s.ID,
		},
	})
}
