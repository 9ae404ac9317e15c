package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// keyset appends the "(created_at, id) < cursor" predicate for descending pages.
func keyset(where []string, args []any, column, cursor string) ([]string, []any, error) {
	if cursor == "" {
		return where, args, nil
	}
	createdAt, id, err := DecodeCursor(cursor)
	if err != nil {
		return nil, nil, err
	}
	args = append(args, createdAt, id)
	where = append(where, fmt.Sprintf("(%s, id) < ($%d, $%d)", column, len(args)-1, len(args)))
	return where, args, nil
}

func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func affectedOne(result sql.Result, what string) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows: %w", what, err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CreateOrganization(ctx context.Context, org Organization) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug)
		VALUES ($1, $2, $3)
	`, org.ID, org.Name, org.Slug)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	var org Organization
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at FROM organizations WHERE id=$1
	`, orgID).Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt)
	if err != nil {
		return Organization{}, notFound(err)
	}
	return org, nil
}

func (s *PostgresStore) GetOrganizationBySlug(ctx context.Context, slug string) (Organization, error) {
	var org Organization
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at FROM organizations WHERE slug=$1
	`, slug).Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt)
	if err != nil {
		return Organization{}, notFound(err)
	}
	return org, nil
}

const userColumns = `id, organization_id, email, display_name, password_hash, role, email_notifications, deactivated_at, created_at`

func scanUser(row rowScanner) (User, error) {
	var user User
	var deactivatedAt sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.OrganizationID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.Role,
		&user.EmailNotifications,
		&deactivatedAt,
		&user.CreatedAt,
	)
	if err != nil {
		return User{}, err
	}
	if deactivatedAt.Valid {
		user.DeactivatedAt = &deactivatedAt.Time
	}
	return user, nil
}

func (s *PostgresStore) InsertUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, organization_id, email, display_name, password_hash, role, email_notifications)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7)
	`, user.ID, user.OrganizationID, user.Email, user.DisplayName, user.PasswordHash, user.Role, user.EmailNotifications)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail is the only lookup not scoped by organization; login resolves the tenant from it.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=LOWER($1)`, email)
	user, err := scanUser(row)
	if err != nil {
		return User{}, notFound(err)
	}
	return user, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, orgID, userID string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE organization_id=$1 AND id=$2`, orgID, userID)
	user, err := scanUser(row)
	if err != nil {
		return User{}, notFound(err)
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, orgID string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE organization_id=$1 AND deactivated_at IS NULL
		ORDER BY display_name ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpdateUserRole(ctx context.Context, orgID, userID, role string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET role=$3 WHERE organization_id=$1 AND id=$2
	`, orgID, userID, role)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	ok, err := affectedOne(result, "update user role")
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertIntakeForm(ctx context.Context, form IntakeForm) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intake_forms (id, organization_id, name, active)
		VALUES ($1, $2, $3, $4)
	`, form.ID, form.OrganizationID, form.Name, form.Active)
	if err != nil {
		return fmt.Errorf("insert intake form: %w", err)
	}
	return nil
}

// GetIntakeForm resolves a public form id to its organization.
func (s *PostgresStore) GetIntakeForm(ctx context.Context, formID string) (IntakeForm, error) {
	var form IntakeForm
	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, active, created_at FROM intake_forms WHERE id=$1
	`, formID).Scan(&form.ID, &form.OrganizationID, &form.Name, &form.Active, &form.CreatedAt)
	if err != nil {
		return IntakeForm{}, notFound(err)
	}
	return form, nil
}

func (s *PostgresStore) ListIntakeForms(ctx context.Context, orgID string) ([]IntakeForm, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, name, active, created_at
		FROM intake_forms
		WHERE organization_id=$1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list intake forms: %w", err)
	}
	defer rows.Close()

	var forms []IntakeForm
	for rows.Next() {
		var form IntakeForm
		if err := rows.Scan(&form.ID, &form.OrganizationID, &form.Name, &form.Active, &form.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan intake form: %w", err)
		}
		forms = append(forms, form)
	}
	return forms, rows.Err()
}
