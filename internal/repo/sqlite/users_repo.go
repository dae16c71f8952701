package sqlite

import (
	"context"
	"errors"

	"github.com/geocoder89/bookinghub/internal/domain/user"
	"gorm.io/gorm"
)

type UsersRepo struct {
	db       *gorm.DB
	filesURL string
}

func NewUsersRepo(db *gorm.DB, filesURL string) *UsersRepo {
	return &UsersRepo{db: db, filesURL: filesURL}
}

func toUser(r userRow, filesURL string) user.User {
	u := user.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Provider:  r.Provider,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.Avatar != nil {
		u.Avatar = user.NewAvatar(r.Avatar.ID, r.Avatar.Path, filesURL)
	}
	return u
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Preload("Avatar").First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return toUser(row, r.filesURL), nil
}

func (r *UsersRepo) ListProviders(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	err := r.db.WithContext(ctx).
		Preload("Avatar").
		Where("provider = ?", true).
		Order("name ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]user.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, toUser(row, r.filesURL))
	}
	return out, nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	row := userRow{Name: u.Name, Email: u.Email, Provider: u.Provider}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return user.User{}, err
	}
	return toUser(row, r.filesURL), nil
}
