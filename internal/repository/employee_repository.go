package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// EmployeeRepository resolves employee names from the directory table.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindName returns the display name of empID. Unknown ids yield sql.ErrNoRows.
func (r *EmployeeRepository) FindName(ctx context.Context, empID string) (string, error) {
	const query = `SELECT emp_name FROM employee WHERE emp_id = $1`
	var name string
	if err := r.db.GetContext(ctx, &name, query, empID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sql.ErrNoRows
		}
		return "", fmt.Errorf("find employee %s: %w", empID, err)
	}
	return name, nil
}
