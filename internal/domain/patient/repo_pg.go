package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const patientCols = `id, external_id, first_name, last_name, second_last_name,
	birth_date, gender, phone_mobile, email, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (
			id, external_id, first_name, last_name, second_last_name,
			birth_date, gender, phone_mobile, email
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.ExternalID, p.FirstName, p.LastName, p.SecondLastName,
		p.BirthDate, p.Gender, p.PhoneMobile, p.Email,
	)
	if err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (r *repoPG) CreateIfAbsent(ctx context.Context, p *Patient) (bool, error) {
	err := r.Create(ctx, p)
	if err == nil {
		return true, nil
	}

	// Unique violation on external_id: another writer got there first.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && p.ExternalID != nil {
		existing, lookupErr := r.GetByExternalID(ctx, *p.ExternalID)
		if lookupErr != nil {
			return false, fmt.Errorf("fetch existing patient after conflict: %w", lookupErr)
		}
		*p = *existing
		return false, nil
	}
	return false, err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetByExternalID(ctx context.Context, externalID string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE external_id = $1`, externalID))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET
			external_id=$2, first_name=$3, last_name=$4, second_last_name=$5,
			birth_date=$6, gender=$7, phone_mobile=$8, email=$9, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.ExternalID, p.FirstName, p.LastName, p.SecondLastName,
		p.BirthDate, p.Gender, p.PhoneMobile, p.Email,
	)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY last_name, first_name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	patients, err := scanPatients(rows)
	if err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

func (r *repoPG) All(ctx context.Context) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY last_name, first_name`)
	if err != nil {
		return nil, fmt.Errorf("load patient corpus: %w", err)
	}
	defer rows.Close()

	return scanPatients(rows)
}

func scanPatient(row pgx.Row) (*Patient, error) {
	p := &Patient{}
	err := row.Scan(
		&p.ID, &p.ExternalID, &p.FirstName, &p.LastName, &p.SecondLastName,
		&p.BirthDate, &p.Gender, &p.PhoneMobile, &p.Email,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return p, nil
}

func scanPatients(rows pgx.Rows) ([]*Patient, error) {
	var patients []*Patient
	for rows.Next() {
		p := &Patient{}
		err := rows.Scan(
			&p.ID, &p.ExternalID, &p.FirstName, &p.LastName, &p.SecondLastName,
			&p.BirthDate, &p.Gender, &p.PhoneMobile, &p.Email,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan patient row: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return patients, nil
}
