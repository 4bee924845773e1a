package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/cbt/internal/engine"
	"github.com/pavelanni/cbt/internal/model"
	"github.com/pavelanni/cbt/internal/store"
)

// importSummary counts the records created from one fixture.
type importSummary struct {
	Users, Classrooms, Questions, Exams, Schedules int
}

// importFixture loads a fixture in dependency order. Questions, exams and
// classrooms are referenced by ref, title and name within the same file.
// Users that already exist are reused.
func importFixture(ctx context.Context, db *store.Store, e *engine.Engine, fx model.Fixture) (importSummary, error) {
	var sum importSummary

	classrooms := make(map[string]int64, len(fx.Classrooms))
	for _, c := range fx.Classrooms {
		id, err := db.CreateClassroom(ctx, c.Name)
		if err != nil {
			return sum, fmt.Errorf("create classroom %q: %w", c.Name, err)
		}
		classrooms[c.Name] = id
		sum.Classrooms++
	}

	for _, ui := range fx.Users {
		id, created, err := importUser(ctx, db, ui)
		if err != nil {
			return sum, err
		}
		if created {
			sum.Users++
		}
		for _, name := range ui.Classrooms {
			classroomID, found := classrooms[name]
			if !found {
				return sum, fmt.Errorf("user %q: unknown classroom %q", ui.Username, name)
			}
			if err := db.EnrollStudent(ctx, classroomID, id); err != nil {
				return sum, fmt.Errorf("enroll %q in %q: %w", ui.Username, name, err)
			}
		}
	}

	questions := make(map[string]int64, len(fx.Questions))
	for i, qi := range fx.Questions {
		q, err := e.CreateQuestion(ctx, qi.Question())
		if err != nil {
			return sum, fmt.Errorf("question %d (%s): %w", i+1, qi.Ref, err)
		}
		if qi.Ref != "" {
			questions[qi.Ref] = q.ID
		}
		sum.Questions++
	}

	exams := make(map[string]int64, len(fx.Exams))
	for _, ei := range fx.Exams {
		ex, err := e.CreateExam(ctx, model.Exam{
			Title:              ei.Title,
			SubjectID:          ei.SubjectID,
			TermID:             ei.TermID,
			DurationMinutes:    ei.DurationMinutes,
			RandomizeQuestions: ei.RandomizeQuestions,
			RandomizeOptions:   ei.RandomizeOptions,
		})
		if err != nil {
			return sum, fmt.Errorf("create exam %q: %w", ei.Title, err)
		}
		for _, eq := range ei.Questions {
			qID, found := questions[eq.Ref]
			if !found {
				return sum, fmt.Errorf("exam %q: unknown question ref %q", ei.Title, eq.Ref)
			}
			if _, err := e.AddQuestion(ctx, ex.ID, qID, eq.Marks, 0); err != nil {
				return sum, fmt.Errorf("exam %q: attach %q: %w", ei.Title, eq.Ref, err)
			}
		}
		if ei.Publish {
			if _, err := e.PublishExam(ctx, ex.ID, true); err != nil {
				return sum, fmt.Errorf("publish exam %q: %w", ei.Title, err)
			}
		}
		exams[ei.Title] = ex.ID
		sum.Exams++
	}

	for _, si := range fx.Schedules {
		examID, found := exams[si.Exam]
		if !found {
			return sum, fmt.Errorf("schedule: unknown exam %q", si.Exam)
		}
		classroomID, found := classrooms[si.Classroom]
		if !found {
			return sum, fmt.Errorf("schedule: unknown classroom %q", si.Classroom)
		}
		if _, err := e.CreateSchedule(ctx, model.ExamSchedule{
			ExamID:        examID,
			ClassroomID:   classroomID,
			TermID:        si.TermID,
			ScheduledDate: si.ScheduledDate,
			StartTime:     si.StartTime,
			EndTime:       si.EndTime,
		}); err != nil {
			return sum, fmt.Errorf("schedule %q for %q: %w", si.Exam, si.Classroom, err)
		}
		sum.Schedules++
	}

	return sum, nil
}

func importUser(ctx context.Context, db *store.Store, ui model.UserImport) (int64, bool, error) {
	existing, err := db.GetUserByUsername(ctx, ui.Username)
	if err != nil {
		return 0, false, fmt.Errorf("look up user %q: %w", ui.Username, err)
	}
	if existing != nil {
		slog.Debug("user exists, reusing", "username", ui.Username)
		return existing.ID, false, nil
	}

	if ui.Password == "" {
		return 0, false, fmt.Errorf("user %q: password is required", ui.Username)
	}
	role := ui.Role
	if role == "" {
		role = model.UserRoleStudent
	}
	display := ui.DisplayName
	if display == "" {
		display = ui.Username
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(ui.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, false, fmt.Errorf("hash password for %q: %w", ui.Username, err)
	}
	id, err := db.CreateUser(ctx, model.User{
		Username:     ui.Username,
		DisplayName:  display,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	if err != nil {
		return 0, false, fmt.Errorf("create user %q: %w", ui.Username, err)
	}
	return id, true, nil
}
