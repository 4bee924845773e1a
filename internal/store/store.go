package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// dbtx is the subset of *sql.DB and *sql.Tx the store needs.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists CBT data in SQLite. A Store returned by InTx runs every
// call inside that transaction.
type Store struct {
	db *sql.DB
	q  dbtx
	tx *sql.Tx
}

// New opens (and migrates) the SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has a single writer, and each :memory: connection is its own database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, q: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn inside a transaction. Calling InTx on a transactional Store
// reuses the open transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, q: tx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// IsNotFound reports whether err means a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS classrooms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS classroom_students (
		classroom_id INTEGER NOT NULL,
		student_id INTEGER NOT NULL,
		PRIMARY KEY (classroom_id, student_id),
		FOREIGN KEY (classroom_id) REFERENCES classrooms(id),
		FOREIGN KEY (student_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_id INTEGER NOT NULL DEFAULT 0,
		question_text TEXT NOT NULL,
		type TEXT NOT NULL,
		difficulty TEXT NOT NULL DEFAULT 'medium',
		marks INTEGER NOT NULL DEFAULT 1,
		time_limit INTEGER,
		options TEXT NOT NULL DEFAULT '',
		correct_answer TEXT NOT NULL DEFAULT '',
		explanation TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS exams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		subject_id INTEGER,
		term_id INTEGER,
		total_marks INTEGER NOT NULL DEFAULT 0,
		duration_minutes INTEGER NOT NULL DEFAULT 60,
		randomize_questions INTEGER NOT NULL DEFAULT 0,
		randomize_options INTEGER NOT NULL DEFAULT 0,
		is_published INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'draft',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_questions (
		exam_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		question_order INTEGER NOT NULL,
		marks_allocated INTEGER NOT NULL,
		PRIMARY KEY (exam_id, question_id),
		FOREIGN KEY (exam_id) REFERENCES exams(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS exam_schedules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_id INTEGER NOT NULL,
		classroom_id INTEGER NOT NULL,
		term_id INTEGER,
		scheduled_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		FOREIGN KEY (exam_id) REFERENCES exams(id),
		FOREIGN KEY (classroom_id) REFERENCES classrooms(id)
	);

	CREATE TABLE IF NOT EXISTS exam_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_schedule_id INTEGER,
		exam_id INTEGER,
		student_id INTEGER NOT NULL,
		start_time DATETIME,
		end_time DATETIME,
		status TEXT NOT NULL DEFAULT 'not_started',
		total_score REAL NOT NULL DEFAULT 0,
		percentage REAL NOT NULL DEFAULT 0,
		time_taken INTEGER NOT NULL DEFAULT 0,
		tab_switches INTEGER NOT NULL DEFAULT 0,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		browser_info TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (exam_schedule_id) REFERENCES exam_schedules(id),
		FOREIGN KEY (exam_id) REFERENCES exams(id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_schedule_student
		ON exam_attempts(exam_schedule_id, student_id) WHERE exam_schedule_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_exam_student
		ON exam_attempts(exam_id, student_id) WHERE exam_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS student_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		answer_text TEXT,
		is_correct INTEGER,
		marks_obtained REAL NOT NULL DEFAULT 0,
		time_spent INTEGER,
		is_flagged INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		option_order TEXT NOT NULL DEFAULT '',
		updated_at DATETIME,
		UNIQUE (attempt_id, question_id),
		FOREIGN KEY (attempt_id) REFERENCES exam_attempts(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS answer_events (
		id TEXT PRIMARY KEY,
		attempt_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		source TEXT NOT NULL,
		saved_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL,
		subject_id INTEGER NOT NULL,
		term_id INTEGER NOT NULL,
		ca_score REAL NOT NULL DEFAULT 0,
		exam_score REAL NOT NULL DEFAULT 0,
		total_score REAL NOT NULL DEFAULT 0,
		cbt_exam_attempt_id INTEGER,
		is_cbt_exam INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		UNIQUE (student_id, subject_id, term_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
