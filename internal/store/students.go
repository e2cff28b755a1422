package store

import (
	"context"
	"fmt"
	"strings"
)

// GetStudentByRegNum resolves a registration number to its student row.
func (s *Store) GetStudentByRegNum(ctx context.Context, regNum string) (Student, error) {
	if err := s.ready(); err != nil {
		return Student{}, err
	}
	var st Student
	err := s.db.QueryRow(ctx, `SELECT id, reg_num, name, branch, year, created_at
FROM students WHERE reg_num = $1`, strings.TrimSpace(regNum)).
		Scan(&st.ID, &st.RegNum, &st.Name, &st.Branch, &st.Year, &st.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return Student{}, ErrNotFound
		}
		return Student{}, fmt.Errorf("get student %q: %w", regNum, err)
	}
	return st, nil
}

// ListStudents returns every known student ordered by registration number.
func (s *Store) ListStudents(ctx context.Context) ([]Student, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `SELECT id, reg_num, name, branch, year, created_at
FROM students ORDER BY reg_num`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.RegNum, &st.Name, &st.Branch, &st.Year, &st.CreatedAt); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}
