package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

// UserRepository is the gateway's read path over login credentials, backing
// the /oauth/token password grant. Scopes and per-tenant roles are stored as
// flat arrays/JSONB rather than normalized tables since nothing but token
// issuance ever reads them.
type UserRepository struct {
	table   string
	builder sq.StatementBuilderType
}

// NewUserRepository builds a UserRepository over table (default "users").
func NewUserRepository(table string) *UserRepository {
	if table == "" {
		table = "users"
	}

	return &UserRepository{table: table, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// FindByUsername looks up a user for the password grant, case-insensitively
// since usernames are not meant to be a source of authz ambiguity.
func (r *UserRepository) FindByUsername(ctx context.Context, db *sql.DB, username string) (mmodel.User, error) {
	query, args, err := r.builder.Select(
		"id", "username", "password_hash", "scopes", "tenant_roles", "created_at", "updated_at",
	).From(r.table).
		Where("lower(username) = lower(?)", username).
		ToSql()
	if err != nil {
		return mmodel.User{}, fmt.Errorf("gateway: build user lookup: %w", err)
	}

	var (
		u           mmodel.User
		scopes      pq.StringArray
		tenantRoles []byte
	)

	if err := db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &scopes, &tenantRoles, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return mmodel.User{}, fmt.Errorf("gateway: find user %q: %w", username, err)
	}

	u.Scopes = []string(scopes)

	if len(tenantRoles) > 0 {
		if err := json.Unmarshal(tenantRoles, &u.TenantRoles); err != nil {
			return mmodel.User{}, fmt.Errorf("gateway: unmarshal tenant roles for %q: %w", username, err)
		}
	}

	return u, nil
}
