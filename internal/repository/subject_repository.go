package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/aasim911-prog/department/internal/models"
)

type SubjectRepository interface {
	Create(ctx context.Context, subject *models.Subject) error
	GetByID(ctx context.Context, id string) (*models.Subject, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type subjectRepository struct {
	*PostgresRepository
}

func NewSubjectRepository(db *sql.DB, logger zerolog.Logger) SubjectRepository {
	return &subjectRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

const subjectColumns = `id, name, code, semester, credits, department, created_by, created_at`

func (r *subjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	query := `
		INSERT INTO subjects (` + subjectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		subject.ID,
		subject.Name,
		subject.Code,
		subject.Semester,
		subject.Credits,
		subject.Department,
		subject.CreatedBy,
		subject.CreatedAt,
	)

	return translate(err)
}

func (r *subjectRepository) GetByID(ctx context.Context, id string) (*models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = $1`

	subject, err := scanSubject(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return subject, err
}

func (r *subjectRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	if len(ids) == 0 {
		return []models.Subject{}, nil
	}
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = ANY($1)`
	return r.query(ctx, query, pq.Array(ids))
}

func (r *subjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error) {
	var (
		where []string
		args  []any
	)
	if filter.Department != "" {
		args = append(args, filter.Department)
		where = append(where, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.Semester > 0 {
		args = append(args, filter.Semester)
		where = append(where, fmt.Sprintf("semester = $%d", len(args)))
	}

	query := `SELECT ` + subjectColumns + ` FROM subjects`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY semester, code`

	return r.query(ctx, query, args...)
}

func (r *subjectRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *subjectRepository) query(ctx context.Context, query string, args ...any) ([]models.Subject, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subjects := make([]models.Subject, 0)
	for rows.Next() {
		subject, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, *subject)
	}
	return subjects, rows.Err()
}

func scanSubject(row rowScanner) (*models.Subject, error) {
	subject := &models.Subject{}
	err := row.Scan(
		&subject.ID,
		&subject.Name,
		&subject.Code,
		&subject.Semester,
		&subject.Credits,
		&subject.Department,
		&subject.CreatedBy,
		&subject.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return subject, nil
}
