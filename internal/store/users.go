package store

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"erp_access/internal/models"
	"erp_access/internal/rbac"
)

// UserStore reads ERP users for authentication and rule placeholders.
type UserStore struct{ *base }

// hiddenAttributes never reach record-rule placeholders.
var hiddenAttributes = []string{"password_hash"}

func (s *UserStore) ByID(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	err := s.read(ctx).First(&u, id).Error
	if isRecordNotFound(err) {
		return nil, rbac.ErrNotFound
	}
	if err != nil {
		return nil, rbac.StorageError("users", err)
	}
	return &u, nil
}

func (s *UserStore) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.read(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if isRecordNotFound(err) {
		return nil, notFound("user", email)
	}
	if err != nil {
		return nil, rbac.StorageError("users", err)
	}
	return &u, nil
}

// UserAttributes returns the user's row keyed by column name, so columns
// added by other modules are available without code changes here.
func (s *UserStore) UserAttributes(ctx context.Context, userID uint64) (map[string]any, error) {
	var rows []map[string]any
	err := s.read(ctx).Table("users").Where("id = ?", userID).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, rbac.StorageError("users", err)
	}
	if len(rows) == 0 {
		return nil, rbac.ErrNotFound
	}
	row := rows[0]
	for _, k := range hiddenAttributes {
		delete(row, k)
	}
	return row, nil
}

// UserSpec declares a user. Password is hashed with bcrypt; an empty
// password leaves an existing hash untouched.
type UserSpec struct {
	Email     string
	Name      string
	Password  string
	Status    models.UserStatus
	CompanyID *uint64
	TeamID    *uint64
}

// UpsertUser creates or updates the user with spec.Email.
func (s *UserStore) UpsertUser(ctx context.Context, spec UserSpec) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(spec.Email))
	status := spec.Status
	if status == "" {
		status = models.UserActive
	}
	attrs := map[string]any{
		"name":       spec.Name,
		"status":     status,
		"company_id": spec.CompanyID,
		"team_id":    spec.TeamID,
	}
	if spec.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(spec.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		attrs["password_hash"] = string(hash)
	}

	var u models.User
	err := s.write(ctx, "upsert_user", func(tx *gorm.DB) error {
		if err := tx.Where(models.User{Email: email}).Assign(attrs).FirstOrCreate(&u).Error; err != nil {
			return err
		}
		return audit(tx, "user.upsert", "user", email, "", map[string]any{"status": status})
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Authenticate checks an email and password pair.
func (s *UserStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, rbac.ErrNotFound
	}
	return u, nil
}
