// To handle all database interactions. This is our
// data access layer, keeping SQL queries separate from business logic.

package store

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/titledock/titledock/internal/models"
)

// Store provides all functions to interact with the database.
type Store struct {
	db *sql.DB
}

// New creates a new Store instance.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertCandidate inserts a resolved install candidate or refreshes an
// existing row for the same path. The selected flag of an existing row is
// left alone so a rescan does not undo the user's choices.
func (s *Store) UpsertCandidate(c *models.InstallCandidate) (int64, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM candidates WHERE path = ?", c.Path).Scan(&id)
	if err == sql.ErrNoRows {
		res, err := s.db.Exec(
			"INSERT INTO candidates (path, label, category, selected, icon, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			c.Path, c.Label, c.Category, c.Selected, c.Icon, time.Now(), time.Now())
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	} else if err != nil {
		return 0, err
	}

	_, err = s.db.Exec(
		"UPDATE candidates SET label = ?, category = ?, icon = ?, updated_at = ? WHERE id = ?",
		c.Label, c.Category, c.Icon, time.Now(), id)
	return id, err
}

// GetAllCandidates returns every candidate ordered by path, matching the
// order the scan discovered them in.
func (s *Store) GetAllCandidates() ([]*models.InstallCandidate, error) {
	rows, err := s.db.Query(`
		SELECT id, path, label, category, selected, icon, created_at, updated_at
		FROM candidates ORDER BY path ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// GetSelectedCandidates returns the candidates marked for install, in the
// same path order as GetAllCandidates.
func (s *Store) GetSelectedCandidates() ([]*models.InstallCandidate, error) {
	rows, err := s.db.Query(`
		SELECT id, path, label, category, selected, icon, created_at, updated_at
		FROM candidates WHERE selected = 1 ORDER BY path ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// GetCandidateByID retrieves a single candidate by its primary key.
func (s *Store) GetCandidateByID(id int64) (*models.InstallCandidate, error) {
	row := s.db.QueryRow(`
		SELECT id, path, label, category, selected, icon, created_at, updated_at
		FROM candidates WHERE id = ?
	`, id)
	return scanCandidate(row)
}

// GetCandidateByPath retrieves a single candidate by its file path.
func (s *Store) GetCandidateByPath(path string) (*models.InstallCandidate, error) {
	row := s.db.QueryRow(`
		SELECT id, path, label, category, selected, icon, created_at, updated_at
		FROM candidates WHERE path = ?
	`, path)
	return scanCandidate(row)
}

// SetCandidateSelection flips the install flag for a single candidate.
func (s *Store) SetCandidateSelection(id int64, selected bool) error {
	res, err := s.db.Exec("UPDATE candidates SET selected = ?, updated_at = ? WHERE id = ?",
		selected, time.Now(), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteCandidateByPath removes a candidate using its file path.
func (s *Store) DeleteCandidateByPath(path string) error {
	_, err := s.db.Exec("DELETE FROM candidates WHERE path = ?", path)
	if err != nil {
		log.Printf("Error deleting candidate by path %s: %v", path, err)
	}
	return err
}

// PruneCandidatesNotIn removes candidates whose files no longer exist in
// the import directory. The paths slice holds everything the last scan saw.
func (s *Store) PruneCandidatesNotIn(paths []string) (int64, error) {
	if len(paths) == 0 {
		res, err := s.db.Exec("DELETE FROM candidates")
		if err != nil {
			return 0, err
		}
		affected, _ := res.RowsAffected()
		return affected, nil
	}

	placeholders := strings.Repeat("?,", len(paths)-1) + "?"
	args := make([]interface{}, len(paths))
	for i, p := range paths {
		args[i] = p
	}

	res, err := s.db.Exec(
		fmt.Sprintf("DELETE FROM candidates WHERE path NOT IN (%s)", placeholders), args...)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// CountCandidates returns the total number of candidates.
func (s *Store) CountCandidates() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM candidates").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (*models.InstallCandidate, error) {
	var c models.InstallCandidate
	var icon sql.NullString
	err := row.Scan(&c.ID, &c.Path, &c.Label, &c.Category, &c.Selected, &icon, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Icon = icon.String
	return &c, nil
}

func scanCandidates(rows *sql.Rows) ([]*models.InstallCandidate, error) {
	candidates := make([]*models.InstallCandidate, 0)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
