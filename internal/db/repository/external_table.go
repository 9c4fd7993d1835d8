package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"duck-connect/internal/domain"
)

// ExternalTableStore implements domain.TableDefinitionStore on the SQLite
// metastore. Insert-if-absent is one INSERT ... ON CONFLICT DO NOTHING
// inside a transaction, so concurrent creates of one name cannot both win.
type ExternalTableStore struct {
	db *sql.DB
}

// NewExternalTableStore creates a store on db, which must be the write
// pool when reads and writes use separate pools.
func NewExternalTableStore(db *sql.DB) *ExternalTableStore {
	return &ExternalTableStore{db: db}
}

var _ domain.TableDefinitionStore = (*ExternalTableStore)(nil)

const selectDefinition = `SELECT name, connector_type, fields, options FROM external_tables`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*domain.ExternalTableDefinition, error) {
	var def domain.ExternalTableDefinition
	var fields, options string
	if err := row.Scan(&def.Name, &def.ConnectorType, &fields, &options); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &def.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %q: %w", def.Name, err)
	}
	if err := json.Unmarshal([]byte(options), &def.Options); err != nil {
		return nil, fmt.Errorf("decode options of %q: %w", def.Name, err)
	}
	return &def, nil
}

func encodeDefinition(def domain.ExternalTableDefinition) (fields, options string, err error) {
	f := def.Fields
	if f == nil {
		f = []domain.ExternalField{}
	}
	fb, err := json.Marshal(f)
	if err != nil {
		return "", "", fmt.Errorf("encode fields of %q: %w", def.Name, err)
	}
	o := def.Options
	if o == nil {
		o = map[string]string{}
	}
	ob, err := json.Marshal(o)
	if err != nil {
		return "", "", fmt.Errorf("encode options of %q: %w", def.Name, err)
	}
	return string(fb), string(ob), nil
}

// Get implements domain.TableDefinitionStore.
func (s *ExternalTableStore) Get(ctx context.Context, name string) (*domain.ExternalTableDefinition, error) {
	def, err := scanDefinition(s.db.QueryRowContext(ctx, selectDefinition+` WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.TableNotFoundError{Name: name}
		}
		return nil, mapDBError(err)
	}
	return def, nil
}

// PutIfAbsent implements domain.TableDefinitionStore.
func (s *ExternalTableStore) PutIfAbsent(ctx context.Context, def domain.ExternalTableDefinition) (*domain.ExternalTableDefinition, error) {
	fields, options, err := encodeDefinition(def)
	if err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		INSERT INTO external_tables (id, name, connector_type, fields, options)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		domain.NewID(), def.Name, def.ConnectorType, fields, options)
	if err != nil {
		return nil, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return nil, tx.Commit()
	}
	prev, err := scanDefinition(tx.QueryRowContext(ctx, selectDefinition+` WHERE name = ?`, def.Name))
	if err != nil {
		return nil, mapDBError(err)
	}
	return prev, tx.Commit()
}

// Put implements domain.TableDefinitionStore.
func (s *ExternalTableStore) Put(ctx context.Context, def domain.ExternalTableDefinition) error {
	fields, options, err := encodeDefinition(def)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO external_tables (id, name, connector_type, fields, options)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			connector_type = excluded.connector_type,
			fields = excluded.fields,
			options = excluded.options,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		domain.NewID(), def.Name, def.ConnectorType, fields, options)
	return mapDBError(err)
}

// Remove implements domain.TableDefinitionStore.
func (s *ExternalTableStore) Remove(ctx context.Context, name string) (*domain.ExternalTableDefinition, error) {
	prev, err := scanDefinition(s.db.QueryRowContext(ctx,
		`DELETE FROM external_tables WHERE name = ? RETURNING name, connector_type, fields, options`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapDBError(err)
	}
	return prev, nil
}

// Values implements domain.TableDefinitionStore. Definitions are returned
// in creation order.
func (s *ExternalTableStore) Values(ctx context.Context) ([]domain.ExternalTableDefinition, error) {
	rows, err := s.db.QueryContext(ctx, selectDefinition+` ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.ExternalTableDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *def)
	}
	return out, rows.Err()
}

// Clear implements domain.TableDefinitionStore.
func (s *ExternalTableStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM external_tables`)
	return err
}
