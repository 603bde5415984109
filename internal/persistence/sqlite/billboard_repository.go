package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/billboard-server/internal/persistence"
)

// BillboardRepository implements persistence.BillboardRepository using SQLite.
// Content passes through a ContentCodec on the way in and out.
type BillboardRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	codec  *ContentCodec
}

// NewBillboardRepository creates a new SQLite billboard repository. A nil codec
// stores content uncompressed.
func NewBillboardRepository(pool *ConnectionPool, codec *ContentCodec) *BillboardRepository {
	if codec == nil {
		codec = IdentityCodec()
	}
	return &BillboardRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		codec:  codec,
	}
}

// CreateBillboard inserts a billboard and returns its generated id
func (r *BillboardRepository) CreateBillboard(ctx context.Context, billboard persistence.Billboard) (int64, error) {
	billboard.Name = strings.TrimSpace(billboard.Name)
	if billboard.Name == "" {
		return 0, persistence.ErrConstraintViolation
	}
	if billboard.CreatedAt.IsZero() {
		billboard.CreatedAt = time.Now()
	}

	stored, encoding, err := r.codec.Encode(billboard.Content)
	if err != nil {
		return 0, err
	}
	if stored == nil {
		stored = []byte{}
	}

	query := `
		INSERT INTO billboards (name, owner_id, content, content_encoding, content_size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.helper.Exec(ctx, query,
		billboard.Name,
		billboard.OwnerID,
		stored,
		string(encoding),
		len(billboard.Content),
		formatTime(billboard.CreatedAt),
		formatTime(billboard.CreatedAt),
	)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}

	return result.LastInsertId()
}

// UpdateBillboard replaces the name and content of billboard.ID. The owner is immutable.
func (r *BillboardRepository) UpdateBillboard(ctx context.Context, billboard persistence.Billboard) error {
	billboard.Name = strings.TrimSpace(billboard.Name)
	if billboard.Name == "" {
		return persistence.ErrConstraintViolation
	}
	if billboard.UpdatedAt.IsZero() {
		billboard.UpdatedAt = time.Now()
	}

	stored, encoding, err := r.codec.Encode(billboard.Content)
	if err != nil {
		return err
	}
	if stored == nil {
		stored = []byte{}
	}

	query := `
		UPDATE billboards
		SET name = ?, content = ?, content_encoding = ?, content_size = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.helper.Exec(ctx, query,
		billboard.Name,
		stored,
		string(encoding),
		len(billboard.Content),
		formatTime(billboard.UpdatedAt),
		billboard.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return rowsAffectedOrNotFound(result)
}

// GetBillboard retrieves a billboard with its decoded content
func (r *BillboardRepository) GetBillboard(ctx context.Context, id int64) (persistence.Billboard, error) {
	query := `
		SELECT b.id, b.name, b.owner_id, u.username, b.content, b.content_encoding, b.content_size, b.created_at, b.updated_at
		FROM billboards b
		JOIN users u ON u.id = b.owner_id
		WHERE b.id = ?
	`
	return r.scanBillboardWithContent(r.helper.QueryRow(ctx, query, id))
}

// GetBillboardByName retrieves a billboard by its unique name
func (r *BillboardRepository) GetBillboardByName(ctx context.Context, name string) (persistence.Billboard, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return persistence.Billboard{}, persistence.ErrNotFound
	}

	query := `
		SELECT b.id, b.name, b.owner_id, u.username, b.content, b.content_encoding, b.content_size, b.created_at, b.updated_at
		FROM billboards b
		JOIN users u ON u.id = b.owner_id
		WHERE b.name = ?
	`
	return r.scanBillboardWithContent(r.helper.QueryRow(ctx, query, name))
}

// ListBillboards returns every billboard ordered by name, without content
func (r *BillboardRepository) ListBillboards(ctx context.Context) ([]persistence.Billboard, error) {
	query := `
		SELECT b.id, b.name, b.owner_id, u.username, b.created_at, b.updated_at
		FROM billboards b
		JOIN users u ON u.id = b.owner_id
		ORDER BY b.name ASC
	`

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var billboards []persistence.Billboard
	for rows.Next() {
		var (
			billboard                  persistence.Billboard
			createdAtStr, updatedAtStr string
		)
		if err := rows.Scan(
			&billboard.ID,
			&billboard.Name,
			&billboard.OwnerID,
			&billboard.OwnerUsername,
			&createdAtStr,
			&updatedAtStr,
		); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if billboard.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
			return nil, err
		}
		if billboard.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
			return nil, err
		}
		billboards = append(billboards, billboard)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return billboards, nil
}

// HasSchedules reports whether at least one schedule shows the billboard
func (r *BillboardRepository) HasSchedules(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.helper.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schedules WHERE billboard_id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return exists, nil
}

// DeleteBillboard removes a billboard with its schedules and their times
func (r *BillboardRepository) DeleteBillboard(ctx context.Context, id int64) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(ctx, tx,
			`DELETE FROM schedule_times WHERE schedule_id IN (SELECT id FROM schedules WHERE billboard_id = ?)`, id); err != nil {
			return r.mapper.MapError(err)
		}
		if _, err := r.helper.ExecTx(ctx, tx, `DELETE FROM schedules WHERE billboard_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecTx(ctx, tx, `DELETE FROM billboards WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return rowsAffectedOrNotFound(result)
	})
}

func (r *BillboardRepository) scanBillboardWithContent(row rowScanner) (persistence.Billboard, error) {
	var (
		billboard                  persistence.Billboard
		stored                     []byte
		encoding                   string
		size                       int
		createdAtStr, updatedAtStr string
	)
	err := row.Scan(
		&billboard.ID,
		&billboard.Name,
		&billboard.OwnerID,
		&billboard.OwnerUsername,
		&stored,
		&encoding,
		&size,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Billboard{}, persistence.ErrNotFound
		}
		return persistence.Billboard{}, r.mapper.MapError(err)
	}

	if billboard.Content, err = r.codec.Decode(stored, ContentEncoding(encoding), size); err != nil {
		return persistence.Billboard{}, err
	}
	if billboard.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.Billboard{}, err
	}
	if billboard.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.Billboard{}, err
	}
	return billboard, nil
}
