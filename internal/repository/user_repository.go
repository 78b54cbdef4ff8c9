package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bjj-academy-api/internal/models"
)

// ErrDuplicateEmail signals an email uniqueness violation on registration.
var ErrDuplicateEmail = fmt.Errorf("email already registered")

// UserRepository handles persistence of academy members.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, name, role, belt, stripe, academy_id, active, phone, created_at, updated_at`

// FindByID returns a user by its ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail returns a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(email)); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindActiveInAcademy returns an active user scoped to the given academy.
func (r *UserRepository) FindActiveInAcademy(ctx context.Context, id, academyID string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 AND academy_id = $2 AND active = TRUE`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id, academyID); err != nil {
		return nil, err
	}
	return &user, nil
}

// FilterActiveIDsInAcademy returns the subset of ids that are active members
// of the academy.
func (r *UserRepository) FilterActiveIDsInAcademy(ctx context.Context, ids []string, academyID string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM users WHERE id IN (?) AND academy_id = ? AND active = TRUE`, ids, academyID)
	if err != nil {
		return nil, fmt.Errorf("build user filter query: %w", err)
	}
	query = r.db.Rebind(query)
	var valid []string
	if err := r.db.SelectContext(ctx, &valid, query, args...); err != nil {
		return nil, fmt.Errorf("filter academy users: %w", err)
	}
	return valid, nil
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(user.Email)

	const query = `INSERT INTO users (id, email, password_hash, name, role, belt, stripe, academy_id, active, phone, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :name, :role, :belt, :stripe, :academy_id, :active, :phone, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// List returns academy members filtered by the provided criteria.
func (r *UserRepository) List(ctx context.Context, academyID string, filter models.UserFilter) ([]models.User, int, error) {
	conditions := []string{"academy_id = $1"}
	args := []interface{}{academyID}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.MinBelt != nil || filter.MaxBelt != nil {
		// Belt labels carry no lexical order, so the range is expanded into
		// the explicit set of belts from the canonical sequence.
		min := models.BeltWhite
		if filter.MinBelt != nil {
			min = *filter.MinBelt
		}
		placeholders := make([]string, 0, len(models.Belts()))
		for _, belt := range models.Belts() {
			if belt.WithinRange(min, filter.MaxBelt) {
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
				args = append(args, belt)
			}
		}
		if len(placeholders) == 0 {
			return nil, 0, nil
		}
		conditions = append(conditions, fmt.Sprintf("belt IN (%s)", strings.Join(placeholders, ",")))
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY name ASC LIMIT %d OFFSET %d`, userColumns, clause, size, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM users" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}
