package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchat-platform/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTenantBindingRace is returned when a concurrent provisioning
// attempt already bound a tenant database to the account. The caller
// can retry the login; the existing binding wins.
var ErrTenantBindingRace = errors.New("tenant database already bound by a concurrent request")

// EnsureCatalogSchema creates the shared catalog tables. All statements
// are idempotent so repeated startups are safe.
func EnsureCatalogSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id serial PRIMARY KEY,
			user_id varchar(256) NOT NULL UNIQUE,
			name varchar(32),
			email varchar(255) NOT NULL UNIQUE,
			avatar_url text,
			created_at timestamptz DEFAULT now(),
			updated_at timestamptz DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS user_id_idx ON users (user_id)`,
		`CREATE TABLE IF NOT EXISTS vector_databases (
			id serial PRIMARY KEY,
			vector_db_id varchar(256) NOT NULL UNIQUE,
			user_id integer NOT NULL UNIQUE REFERENCES users(id),
			created_at timestamptz DEFAULT now(),
			updated_at timestamptz DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS vector_db_id_idx ON vector_databases (vector_db_id)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id serial PRIMARY KEY,
			document_id varchar(256) NOT NULL UNIQUE,
			user_id integer NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title varchar(255) NOT NULL,
			file_name text NOT NULL,
			file_size bigint NOT NULL,
			created_at timestamptz DEFAULT now(),
			updated_at timestamptz DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS document_id_idx ON documents (document_id)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure catalog schema: %w", err)
		}
	}
	return nil
}

type PgAccountStore struct {
	pool *pgxpool.Pool
}

func NewAccountStore(pool *pgxpool.Pool) *PgAccountStore {
	return &PgAccountStore{pool: pool}
}

func (s *PgAccountStore) GetByEmail(ctx context.Context, email string) (*models.Account, *models.TenantDatabase, error) {
	query := `
		SELECT u.id, u.user_id, COALESCE(u.name, ''), u.email, COALESCE(u.avatar_url, ''), u.created_at, u.updated_at,
		       v.id, v.vector_db_id, v.user_id, v.created_at, v.updated_at
		FROM users u
		LEFT JOIN vector_databases v ON v.user_id = u.id
		WHERE u.email = $1`

	// The tenant columns come from a LEFT JOIN and may all be NULL.
	var a models.Account
	var tID, tAccountID *int64
	var tVectorDBID *string
	var tCreatedAt, tUpdatedAt *time.Time

	err := s.pool.QueryRow(ctx, query, email).Scan(
		&a.ID, &a.AccountID, &a.Name, &a.Email, &a.AvatarURL, &a.CreatedAt, &a.UpdatedAt,
		&tID, &tVectorDBID, &tAccountID, &tCreatedAt, &tUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("get account by email: %w", err)
	}

	if tID == nil || tVectorDBID == nil {
		return &a, nil, nil
	}

	t := models.TenantDatabase{
		ID:         *tID,
		VectorDBID: *tVectorDBID,
		AccountID:  *tAccountID,
	}
	if tCreatedAt != nil {
		t.CreatedAt = *tCreatedAt
	}
	if tUpdatedAt != nil {
		t.UpdatedAt = *tUpdatedAt
	}
	return &a, &t, nil
}

// Upsert tolerates races on first login: the conflict target is the
// unique email, and a loser falls through to re-select the winner's row.
func (s *PgAccountStore) Upsert(ctx context.Context, profile models.Profile, accountID string) (*models.Account, error) {
	insert := `
		INSERT INTO users (user_id, name, email, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (email) DO NOTHING`

	if _, err := s.pool.Exec(ctx, insert, accountID, profile.Name, profile.Email, profile.AvatarURL); err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}

	query := `
		SELECT id, user_id, COALESCE(name, ''), email, COALESCE(avatar_url, ''), created_at, updated_at
		FROM users
		WHERE email = $1`

	var a models.Account
	err := s.pool.QueryRow(ctx, query, profile.Email).Scan(
		&a.ID, &a.AccountID, &a.Name, &a.Email, &a.AvatarURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("select account after upsert: %w", err)
	}
	return &a, nil
}

type PgTenantDBStore struct {
	pool *pgxpool.Pool
}

func NewTenantDBStore(pool *pgxpool.Pool) *PgTenantDBStore {
	return &PgTenantDBStore{pool: pool}
}

func (s *PgTenantDBStore) Bind(ctx context.Context, accountID int64, vectorDBID string) (*models.TenantDatabase, error) {
	query := `
		INSERT INTO vector_databases (vector_db_id, user_id, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		RETURNING id, vector_db_id, user_id, created_at, updated_at`

	var t models.TenantDatabase
	err := s.pool.QueryRow(ctx, query, vectorDBID, accountID).Scan(
		&t.ID, &t.VectorDBID, &t.AccountID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation: a concurrent login already bound a
		// tenant database for this account. Surface it as retryable.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrTenantBindingRace
		}
		return nil, fmt.Errorf("bind tenant database: %w", err)
	}
	return &t, nil
}

func (s *PgTenantDBStore) GetByAccount(ctx context.Context, accountID int64) (*models.TenantDatabase, error) {
	query := `
		SELECT id, vector_db_id, user_id, created_at, updated_at
		FROM vector_databases
		WHERE user_id = $1`

	var t models.TenantDatabase
	err := s.pool.QueryRow(ctx, query, accountID).Scan(
		&t.ID, &t.VectorDBID, &t.AccountID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant database: %w", err)
	}
	return &t, nil
}

func (s *PgTenantDBStore) List(ctx context.Context) ([]models.TenantDatabase, error) {
	query := `
		SELECT id, vector_db_id, user_id, created_at, updated_at
		FROM vector_databases
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tenant databases: %w", err)
	}
	defer rows.Close()

	var out []models.TenantDatabase
	for rows.Next() {
		var t models.TenantDatabase
		if err := rows.Scan(&t.ID, &t.VectorDBID, &t.AccountID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant database: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type PgDocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *PgDocumentStore {
	return &PgDocumentStore{pool: pool}
}

func (s *PgDocumentStore) Insert(ctx context.Context, doc models.Document) (*models.Document, error) {
	query := `
		INSERT INTO documents (document_id, user_id, title, file_name, file_size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, document_id, user_id, title, file_name, file_size, created_at, updated_at`

	var d models.Document
	err := s.pool.QueryRow(ctx, query, doc.DocumentID, doc.AccountID, doc.Title, doc.FileName, doc.FileSize).Scan(
		&d.ID, &d.DocumentID, &d.AccountID, &d.Title, &d.FileName, &d.FileSize, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return &d, nil
}

func (s *PgDocumentStore) CountByAccount(ctx context.Context, accountID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE user_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func (s *PgDocumentStore) ListByAccount(ctx context.Context, accountID int64) ([]models.Document, error) {
	query := `
		SELECT id, document_id, user_id, title, file_name, file_size, created_at, updated_at
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.DocumentID, &d.AccountID, &d.Title, &d.FileName, &d.FileSize, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
