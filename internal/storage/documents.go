package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"worksync/internal"
)

type DocumentFilter struct {
	TaskNumber string
	DocType    string
	From       string
	To         string
}

type MonthTotal struct {
	Month string
	Total float64
}

type ServiceStat struct {
	Code        int
	Description string
	Count       int
	Total       float64
}

type Statistics struct {
	ByType   map[string]int
	ByMonth  []MonthTotal
	Services []ServiceStat
}

const documentColumns = `id, taskNumber, docType, createdAt, COALESCE(startDate, ''), COALESCE(endDate, ''),
       totalAmount, servicesJson, COALESCE(filePath, ''), COALESCE(notes, '')`

// SaveDocument stores doc and its service lines; the total is recomputed from the lines.
func (d *DB) SaveDocument(doc internal.DocumentRecord) (int64, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	total := 0.0
	for _, s := range doc.Services {
		total += s.Amount
	}
	servicesJSON, _ := json.Marshal(doc.Services)

	var createdAt any
	if doc.CreatedAt != "" {
		createdAt = doc.CreatedAt
	}
	result, err := tx.Exec(`
INSERT INTO documents (taskNumber, docType, createdAt, startDate, endDate, totalAmount, servicesJson, filePath, notes)
VALUES (?, ?, COALESCE(?, CURRENT_TIMESTAMP), ?, ?, ?, ?, ?, ?)
`, doc.TaskNumber, doc.DocType, createdAt, doc.StartDate, doc.EndDate, total, string(servicesJSON), doc.FilePath, doc.Notes)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO document_services (documentId, code, description, amount) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, s := range doc.Services {
		if _, err := stmt.Exec(id, s.Code, s.Description, s.Amount); err != nil {
			return 0, err
		}
	}

	return id, tx.Commit()
}

func (d *DB) GetDocument(id int64) (*internal.DocumentRecord, error) {
	row := d.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns documents newest first. From and To bound createdAt inclusively.
func (d *DB) ListDocuments(filter DocumentFilter) ([]internal.DocumentRecord, error) {
	var where []string
	var args []any
	if filter.TaskNumber != "" {
		where = append(where, "taskNumber = ?")
		args = append(args, filter.TaskNumber)
	}
	if filter.DocType != "" {
		where = append(where, "docType = ?")
		args = append(args, filter.DocType)
	}
	if filter.From != "" {
		where = append(where, "createdAt >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		where = append(where, "createdAt <= ?")
		args = append(args, filter.To)
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY createdAt DESC, id DESC"
	return d.queryDocuments(query, args...)
}

// SearchDocuments matches text against task numbers, notes and service descriptions.
func (d *DB) SearchDocuments(text string) ([]internal.DocumentRecord, error) {
	like := "%" + text + "%"
	return d.queryDocuments(`
SELECT `+documentColumns+` FROM documents
WHERE taskNumber LIKE ? OR notes LIKE ? OR servicesJson LIKE ?
ORDER BY createdAt DESC, id DESC
`, like, like, like)
}

// DeleteDocument reports whether a document with id existed.
func (d *DB) DeleteDocument(id int64) (bool, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM document_services WHERE documentId = ?`, id); err != nil {
		return false, err
	}
	result, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

// Statistics counts documents by type, sums totals for the last twelve months and
// ranks services by how often they were billed.
func (d *DB) Statistics() (Statistics, error) {
	stats := Statistics{ByType: map[string]int{}}

	rows, err := d.conn.Query(`SELECT docType, COUNT(*) FROM documents GROUP BY docType`)
	if err != nil {
		return stats, err
	}
	for rows.Next() {
		var docType string
		var count int
		if err := rows.Scan(&docType, &count); err != nil {
			_ = rows.Close()
			return stats, err
		}
		stats.ByType[docType] = count
	}
	_ = rows.Close()

	rows, err = d.conn.Query(`
SELECT substr(createdAt, 1, 7) AS month, SUM(totalAmount)
FROM documents
GROUP BY month
ORDER BY month DESC
LIMIT 12
`)
	if err != nil {
		return stats, err
	}
	for rows.Next() {
		var m MonthTotal
		if err := rows.Scan(&m.Month, &m.Total); err != nil {
			_ = rows.Close()
			return stats, err
		}
		stats.ByMonth = append(stats.ByMonth, m)
	}
	_ = rows.Close()

	rows, err = d.conn.Query(`
SELECT code, COALESCE(MAX(description), ''), COUNT(*) AS uses, SUM(amount)
FROM document_services
GROUP BY code
ORDER BY uses DESC, code ASC
`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var s ServiceStat
		if err := rows.Scan(&s.Code, &s.Description, &s.Count, &s.Total); err != nil {
			return stats, err
		}
		stats.Services = append(stats.Services, s)
	}
	return stats, rows.Err()
}

func (d *DB) queryDocuments(query string, args ...any) ([]internal.DocumentRecord, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DocumentRecord
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (internal.DocumentRecord, error) {
	var doc internal.DocumentRecord
	var servicesJSON string
	if err := s.Scan(&doc.ID, &doc.TaskNumber, &doc.DocType, &doc.CreatedAt, &doc.StartDate, &doc.EndDate,
		&doc.TotalAmount, &servicesJSON, &doc.FilePath, &doc.Notes); err != nil {
		return doc, err
	}
	_ = json.Unmarshal([]byte(servicesJSON), &doc.Services)
	return doc, nil
}
