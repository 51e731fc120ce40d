package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `id, patient_id, full_text, content_hash, doc_type, original_filename, created_at`

func (r *repoPG) Create(ctx context.Context, d *Record) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO document_record (id, patient_id, full_text, content_hash, doc_type, original_filename)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (patient_id, content_hash) DO NOTHING`,
		d.ID, d.PatientID, d.FullText, d.ContentHash, d.DocType, d.OriginalFilename,
	)
	if err != nil {
		return fmt.Errorf("create document record: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM document_record WHERE id = $1`, id))
}

func (r *repoPG) GetByPatientAndHash(ctx context.Context, patientID uuid.UUID, contentHash string) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM document_record WHERE patient_id = $1 AND content_hash = $2`,
		patientID, contentHash))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM document_record WHERE patient_id = $1 ORDER BY created_at`,
		patientID)
	if err != nil {
		return nil, fmt.Errorf("list documents for patient: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		d := &Record{}
		if err := rows.Scan(&d.ID, &d.PatientID, &d.FullText, &d.ContentHash,
			&d.DocType, &d.OriginalFilename, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		records = append(records, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return records, nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM document_record WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	d := &Record{}
	err := row.Scan(&d.ID, &d.PatientID, &d.FullText, &d.ContentHash,
		&d.DocType, &d.OriginalFilename, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document record: %w", err)
	}
	return d, nil
}
