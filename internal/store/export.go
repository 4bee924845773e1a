package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/cbt/internal/model"
)

// ExportSchedule builds export-ready student results for one schedule.
func (s *Store) ExportSchedule(ctx context.Context, scheduleID int64) (model.ScheduleExport, error) {
	var out model.ScheduleExport

	sc, err := s.GetSchedule(ctx, scheduleID)
	if err != nil {
		return out, fmt.Errorf("get schedule %d: %w", scheduleID, err)
	}
	exam, err := s.GetExam(ctx, sc.ExamID)
	if err != nil {
		return out, fmt.Errorf("get exam %d: %w", sc.ExamID, err)
	}
	eqs, err := s.ListExamQuestions(ctx, exam.ID)
	if err != nil {
		return out, fmt.Errorf("list exam questions: %w", err)
	}
	byQuestion := make(map[int64]model.ExamQuestion, len(eqs))
	for _, eq := range eqs {
		byQuestion[eq.QuestionID] = eq
	}

	out = model.ScheduleExport{
		ScheduleID:    sc.ID,
		ExamID:        exam.ID,
		ExamTitle:     exam.Title,
		ClassroomID:   sc.ClassroomID,
		ScheduledDate: sc.ScheduledDate,
		TotalMarks:    exam.TotalMarks,
		NumQuestions:  len(eqs),
	}

	attempts, err := s.ListAttemptsForSchedule(ctx, scheduleID, "")
	if err != nil {
		return out, fmt.Errorf("list attempts: %w", err)
	}
	for _, a := range attempts {
		user, err := s.GetUserByID(ctx, a.StudentID)
		if err != nil {
			return out, fmt.Errorf("get user %d: %w", a.StudentID, err)
		}
		var username, displayName string
		if user != nil {
			username = user.Username
			displayName = user.DisplayName
		}

		answers, err := s.ListAnswers(ctx, a.ID)
		if err != nil {
			return out, fmt.Errorf("list answers of attempt %d: %w", a.ID, err)
		}
		var questions []model.QuestionResult
		for _, ans := range answers {
			eq, ok := byQuestion[ans.QuestionID]
			if !ok {
				continue
			}
			qr := model.QuestionResult{
				QuestionID:     ans.QuestionID,
				Text:           eq.Question.Text,
				Type:           eq.Question.Type,
				MarksAllocated: eq.MarksAllocated,
				IsCorrect:      ans.IsCorrect,
				MarksObtained:  ans.MarksObtained,
				Flagged:        ans.IsFlagged,
			}
			if ans.AnswerText != nil {
				qr.Answer = *ans.AnswerText
			}
			questions = append(questions, qr)
		}

		out.Results = append(out.Results, model.StudentResult{
			StudentID:   a.StudentID,
			Username:    username,
			DisplayName: displayName,
			Status:      a.Status,
			StartedAt:   a.StartTime,
			SubmittedAt: a.EndTime,
			TimeTaken:   a.TimeTaken,
			TabSwitches: a.TabSwitches,
			TotalScore:  a.TotalScore,
			Percentage:  a.Percentage,
			Grade:       a.Grade(),
			Passed:      a.IsPassed(),
			Questions:   questions,
		})
	}
	return out, nil
}
