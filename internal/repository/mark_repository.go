package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/aasim911-prog/department/internal/models"
)

type MarkRepository interface {
	// Upsert inserts or replaces the mark of (student_id, subject_id) and
	// reports whether a new row was created.
	Upsert(ctx context.Context, mark *models.Mark) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.MarkWithSubject, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.MarkWithStudent, error)
	ListStudentIDsBySubject(ctx context.Context, subjectID string) ([]string, error)
}

type markRepository struct {
	*PostgresRepository
}

func NewMarkRepository(db *sql.DB, logger zerolog.Logger) MarkRepository {
	return &markRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *markRepository) Upsert(ctx context.Context, mark *models.Mark) (bool, error) {
	query := `
		INSERT INTO marks (id, student_id, subject_id, semester, internal1, internal2, internal3, final_exam, uploaded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (student_id, subject_id) DO UPDATE SET
			semester = EXCLUDED.semester,
			internal1 = EXCLUDED.internal1,
			internal2 = EXCLUDED.internal2,
			internal3 = EXCLUDED.internal3,
			final_exam = EXCLUDED.final_exam,
			uploaded_by = EXCLUDED.uploaded_by,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.db.QueryRowContext(ctx, query,
		mark.ID,
		mark.StudentID,
		mark.SubjectID,
		mark.Semester,
		mark.Internal1,
		mark.Internal2,
		mark.Internal3,
		mark.FinalExam,
		mark.UploadedBy,
		mark.CreatedAt,
		mark.UpdatedAt,
	).Scan(&mark.ID, &mark.CreatedAt, &inserted)
	if err != nil {
		return false, translate(err)
	}

	r.logger.Debug().
		Str("mark_id", mark.ID).
		Str("student_id", mark.StudentID).
		Str("subject_id", mark.SubjectID).
		Bool("inserted", inserted).
		Msg("Mark upserted")

	return inserted, nil
}

func (r *markRepository) ListByStudent(ctx context.Context, studentID string) ([]models.MarkWithSubject, error) {
	query := `
		SELECT
			m.id, m.student_id, m.subject_id, m.semester,
			m.internal1, m.internal2, m.internal3, m.final_exam,
			m.uploaded_by, m.created_at, m.updated_at,
			s.name, s.code, s.credits
		FROM marks m
		JOIN subjects s ON s.id = m.subject_id
		WHERE m.student_id = $1
		ORDER BY m.semester, s.code
	`

	rows, err := r.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marks := make([]models.MarkWithSubject, 0)
	for rows.Next() {
		var m models.MarkWithSubject
		err := rows.Scan(append(markFields(&m.Mark), &m.SubjectName, &m.SubjectCode, &m.Credits)...)
		if err != nil {
			return nil, err
		}
		marks = append(marks, m)
	}
	return marks, rows.Err()
}

func (r *markRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.MarkWithStudent, error) {
	query := `
		SELECT
			m.id, m.student_id, m.subject_id, m.semester,
			m.internal1, m.internal2, m.internal3, m.final_exam,
			m.uploaded_by, m.created_at, m.updated_at,
			COALESCE(u.name, '')
		FROM marks m
		LEFT JOIN users u ON u.student_id = m.student_id
		WHERE m.subject_id = $1
		ORDER BY m.student_id
	`

	rows, err := r.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marks := make([]models.MarkWithStudent, 0)
	for rows.Next() {
		var m models.MarkWithStudent
		if err := rows.Scan(append(markFields(&m.Mark), &m.StudentName)...); err != nil {
			return nil, err
		}
		marks = append(marks, m)
	}
	return marks, rows.Err()
}

func (r *markRepository) ListStudentIDsBySubject(ctx context.Context, subjectID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT student_id FROM marks WHERE subject_id = $1`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func markFields(m *models.Mark) []any {
	return []any{
		&m.ID,
		&m.StudentID,
		&m.SubjectID,
		&m.Semester,
		&m.Internal1,
		&m.Internal2,
		&m.Internal3,
		&m.FinalExam,
		&m.UploadedBy,
		&m.CreatedAt,
		&m.UpdatedAt,
	}
}
