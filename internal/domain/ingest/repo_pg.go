package ingest

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

const batchCols = `id, processing_mode, default_doc_type, status, total_files,
	processed_files, created_patients, matched_patients, error_count,
	created_at, updated_at`

func (r *repoPG) CreateBatch(ctx context.Context, b *UploadBatch) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO upload_batch (
			id, processing_mode, default_doc_type, status, total_files
		) VALUES ($1,$2,$3,$4,$5)`,
		b.ID, b.ProcessingMode, b.DefaultDocType, b.Status, b.TotalFiles,
	)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

func (r *repoPG) GetBatch(ctx context.Context, id uuid.UUID) (*UploadBatch, error) {
	return scanBatch(r.conn(ctx).QueryRow(ctx,
		`SELECT `+batchCols+` FROM upload_batch WHERE id = $1`, id))
}

func (r *repoPG) ListBatches(ctx context.Context, limit, offset int) ([]*UploadBatch, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM upload_batch`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+batchCols+` FROM upload_batch ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*UploadBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, total, nil
}

func (r *repoPG) SetBatchStatus(ctx context.Context, id uuid.UUID, status BatchStatus) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE upload_batch SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("set batch status: %w", err)
	}
	return nil
}

func (r *repoPG) IncrementCounters(ctx context.Context, id uuid.UUID, processed, created, matched, errs int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE upload_batch SET
			processed_files  = processed_files + $2,
			created_patients = created_patients + $3,
			matched_patients = matched_patients + $4,
			error_count      = error_count + $5,
			updated_at       = NOW()
		WHERE id = $1`,
		id, processed, created, matched, errs)
	if err != nil {
		return fmt.Errorf("increment batch counters: %w", err)
	}
	return nil
}

const itemCols = `id, batch_id, filename, content, status,
	external_id, given_name, surname1, surname2, episode_number, doc_type_code,
	patient_id, decision, match_candidates, error_message, created_at, updated_at`

func (r *repoPG) CreateItem(ctx context.Context, it *BatchFileItem) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO batch_file_item (id, batch_id, filename, content, status)
		VALUES ($1,$2,$3,$4,$5)`,
		it.ID, it.BatchID, it.Filename, it.Content, it.Status,
	)
	if err != nil {
		return fmt.Errorf("create batch item: %w", err)
	}
	return nil
}

func (r *repoPG) GetItem(ctx context.Context, id uuid.UUID) (*BatchFileItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM batch_file_item WHERE id = $1`, id))
}

func (r *repoPG) ListItems(ctx context.Context, batchID uuid.UUID) ([]*BatchFileItem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM batch_file_item WHERE batch_id = $1 ORDER BY created_at, filename`,
		batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch items: %w", err)
	}
	defer rows.Close()

	var items []*BatchFileItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch items: %w", err)
	}
	return items, nil
}

func (r *repoPG) UpdateItem(ctx context.Context, it *BatchFileItem) error {
	var prev ItemStatus
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT status FROM batch_file_item WHERE id = $1`, it.ID).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("load item status: %w", err)
	}

	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE batch_file_item SET
			status=$2, external_id=$3, given_name=$4, surname1=$5, surname2=$6,
			episode_number=$7, doc_type_code=$8, patient_id=$9, decision=$10,
			match_candidates=$11, error_message=$12, updated_at=NOW()
		WHERE id = $1`,
		it.ID, it.Status, it.ExternalID, it.GivenName, it.Surname1, it.Surname2,
		it.EpisodeNumber, it.DocTypeCode, it.PatientID, it.Decision,
		it.MatchCandidates, it.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("update batch item: %w", err)
	}

	if prev != it.Status {
		_, err = r.conn(ctx).Exec(ctx, `
			INSERT INTO item_status_history (item_id, from_status, to_status, note)
			VALUES ($1,$2,$3,$4)`,
			it.ID, prev, it.Status, it.ErrorMessage,
		)
		if err != nil {
			return fmt.Errorf("append status history: %w", err)
		}
	}
	return nil
}

func (r *repoPG) ItemHistory(ctx context.Context, itemID uuid.UUID) ([]StatusTransition, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, item_id, from_status, to_status, note, created_at
		FROM item_status_history WHERE item_id = $1 ORDER BY id`,
		itemID)
	if err != nil {
		return nil, fmt.Errorf("load item history: %w", err)
	}
	defer rows.Close()

	var history []StatusTransition
	for rows.Next() {
		var t StatusTransition
		if err := rows.Scan(&t.ID, &t.ItemID, &t.FromStatus, &t.ToStatus, &t.Note, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status transition: %w", err)
		}
		history = append(history, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item history: %w", err)
	}
	return history, nil
}

func scanBatch(row pgx.Row) (*UploadBatch, error) {
	b := &UploadBatch{}
	err := row.Scan(
		&b.ID, &b.ProcessingMode, &b.DefaultDocType, &b.Status, &b.TotalFiles,
		&b.ProcessedFiles, &b.CreatedPatients, &b.MatchedPatients, &b.ErrorCount,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	return b, nil
}

func scanItem(row pgx.Row) (*BatchFileItem, error) {
	it := &BatchFileItem{}
	err := row.Scan(
		&it.ID, &it.BatchID, &it.Filename, &it.Content, &it.Status,
		&it.ExternalID, &it.GivenName, &it.Surname1, &it.Surname2,
		&it.EpisodeNumber, &it.DocTypeCode,
		&it.PatientID, &it.Decision, &it.MatchCandidates, &it.ErrorMessage,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch item: %w", err)
	}
	return it, nil
}
