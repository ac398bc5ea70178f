package storage

import (
	"database/sql"
	"errors"
)

type MailRow struct {
	ID         int64
	TaskNumber string
	Template   string
	Subject    string
	Provider   string
	Ref        string
	Hash       string
	RawPath    string
	CreatedAt  string
}

const mailColumns = `id, taskNumber, template, COALESCE(subject, ''), provider, ref, hash, rawPath, createdAt`

// UpsertMail records a delivered message; delivering the same bytes twice through one
// provider updates the reference instead of adding a row.
func (d *DB) UpsertMail(row MailRow) (MailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO mails (taskNumber, template, subject, provider, ref, hash, rawPath)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, hash) DO UPDATE SET
  ref=excluded.ref,
  rawPath=excluded.rawPath,
  updatedAt=CURRENT_TIMESTAMP
`, row.TaskNumber, row.Template, row.Subject, row.Provider, row.Ref, row.Hash, row.RawPath)
	if err != nil {
		return MailRow{}, err
	}

	stored, err := d.GetMail(row.Provider, row.Hash)
	if err != nil {
		return MailRow{}, err
	}
	if stored == nil {
		return MailRow{}, errors.New("failed to upsert mail")
	}
	return *stored, nil
}

func (d *DB) GetMail(provider, hash string) (*MailRow, error) {
	var row MailRow
	err := d.conn.QueryRow(`SELECT `+mailColumns+` FROM mails WHERE provider = ? AND hash = ?`, provider, hash).Scan(
		&row.ID, &row.TaskNumber, &row.Template, &row.Subject, &row.Provider, &row.Ref, &row.Hash, &row.RawPath, &row.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListMails(taskNumber string) ([]MailRow, error) {
	rows, err := d.conn.Query(`SELECT `+mailColumns+` FROM mails WHERE taskNumber = ? ORDER BY id ASC`, taskNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MailRow
	for rows.Next() {
		var row MailRow
		if err := rows.Scan(&row.ID, &row.TaskNumber, &row.Template, &row.Subject, &row.Provider, &row.Ref, &row.Hash, &row.RawPath, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
