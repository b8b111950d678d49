package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveResume inserts r, or replaces it when r.ID already exists. A missing
// ID is generated; the stored record is returned.
func (s *Store) SaveResume(r SavedResume) (SavedResume, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Second)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	data, err := json.Marshal(r.Resume)
	if err != nil {
		return SavedResume{}, fmt.Errorf("encoding resume: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO resumes (id, created_at, updated_at, name, email, data_json, source_file, archive_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			name = excluded.name,
			email = excluded.email,
			data_json = excluded.data_json,
			source_file = excluded.source_file,
			archive_key = excluded.archive_key`,
		r.ID, r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339),
		r.Resume.Name, r.Resume.Email, string(data), r.SourceFile, r.ArchiveKey,
	)
	if err != nil {
		return SavedResume{}, fmt.Errorf("saving resume %s: %w", r.ID, err)
	}
	return r, nil
}

const resumeColumns = `id, created_at, updated_at, data_json, source_file, archive_key`

func (s *Store) GetResume(id string) (SavedResume, error) {
	r, err := scanResume(s.db.QueryRow(`SELECT `+resumeColumns+` FROM resumes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return SavedResume{}, ErrNotFound
	}
	return r, err
}

// ListResumes returns the most recently saved resumes first.
func (s *Store) ListResumes(limit int) ([]SavedResume, error) {
	rows, err := s.db.Query(`SELECT `+resumeColumns+` FROM resumes ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SavedResume
	for rows.Next() {
		r, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) DeleteResume(id string) error {
	res, err := s.db.Exec(`DELETE FROM resumes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResume(row scanner) (SavedResume, error) {
	var r SavedResume
	var createdAt, updatedAt, data string
	if err := row.Scan(&r.ID, &createdAt, &updatedAt, &data, &r.SourceFile, &r.ArchiveKey); err != nil {
		return SavedResume{}, err
	}
	if err := json.Unmarshal([]byte(data), &r.Resume); err != nil {
		return SavedResume{}, fmt.Errorf("decoding resume %s: %w", r.ID, err)
	}
	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return SavedResume{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return SavedResume{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return r, nil
}
