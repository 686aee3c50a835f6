package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

var _ OwnershipStore = (*SQLStore)(nil)
var _ RoleDirectory = (*SQLStore)(nil)

// SQLStore implements the data-store collaborators over PostgreSQL.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// ownedTables whitelists the resource types backed by a table with a
// usuario_id column. The map doubles as an injection guard: resource names
// arrive from URL segments and must never reach the query as-is.
var ownedTables = map[string]string{
	"reservas": "reservas",
	"resenas":  "resenas",
}

// OwnsResource runs the single ownership read the authorization engine
// depends on.
func (s *SQLStore) OwnsResource(ctx context.Context, userID, resourceType, resourceID string) (bool, error) {
	table, ok := ownedTables[resourceType]
	if !ok {
		return false, nil
	}
	query := fmt.Sprintf(`select count(*) from %s where id = $1 and usuario_id = $2`, table)
	var count int
	if err := s.db.QueryRowContext(ctx, query, resourceID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("ownership lookup %s/%s: %w", resourceType, resourceID, err)
	}
	return count > 0, nil
}

// RolesForUser resolves roles for externally-authenticated principals. The
// provider only vouches for identity; role assignment lives in usuarios.
func (s *SQLStore) RolesForUser(ctx context.Context, subject string) ([]string, error) {
	row := s.db.QueryRowContext(ctx,
		`select rol from usuarios where firebase_uid = $1`, subject)
	var role string
	if err := row.Scan(&role); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("role lookup %s: %w", subject, err)
	}
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return nil, nil
	}
	return []string{role}, nil
}
