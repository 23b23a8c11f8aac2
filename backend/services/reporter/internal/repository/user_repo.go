package repository

import (
	"context"
	"database/sql"
	"strings"

	"vaeva/backend/services/reporter/internal/models"
)

// DefaultUserQuery lists directory users. Custom queries must return the same seven columns.
const DefaultUserQuery = `
	SELECT id, name, email, badge, street, postcode, city
	FROM report_users
	ORDER BY id
`

// UserRepository reads report users from a postgres directory.
type UserRepository struct {
	db    *sql.DB
	query string
}

// NewUserRepository returns repository instance. An empty query uses DefaultUserQuery.
func NewUserRepository(db *sql.DB, query string) *UserRepository {
	if strings.TrimSpace(query) == "" {
		query = DefaultUserQuery
	}
	return &UserRepository{db: db, query: query}
}

// List returns every directory user in query order.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, r.query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (models.User, error) {
	var id string
	var name, email, badge, street, postcode, city sql.NullString
	if err := row.Scan(&id, &name, &email, &badge, &street, &postcode, &city); err != nil {
		return models.User{}, err
	}
	return models.User{
		ID:       strings.TrimSpace(id),
		Name:     name.String,
		Email:    email.String,
		Badge:    badge.String,
		Street:   street.String,
		Postcode: postcode.String,
		City:     city.String,
	}, nil
}

// MergeUsers appends directory users whose id is not already configured.
func MergeUsers(configured, directory []models.User) []models.User {
	seen := make(map[string]struct{}, len(configured))
	for _, u := range configured {
		seen[u.ID] = struct{}{}
	}
	merged := append([]models.User(nil), configured...)
	for _, u := range directory {
		if u.ID == "" {
			continue
		}
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}
		merged = append(merged, u)
	}
	return merged
}
