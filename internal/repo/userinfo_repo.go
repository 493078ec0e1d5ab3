// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the UserInfo
// profile, which is created lazily on first touch.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
)

// GetOrCreateUserInfo returns the profile for the principal, creating an
// empty row keyed by the principal id on first touch.
func GetOrCreateUserInfo(ctx context.Context, db *gorm.DB, id, email string) (*domain.UserInfo, error) {
	var u domain.UserInfo
	err := db.WithContext(ctx).
		Where(domain.UserInfo{ID: id}).
		Attrs(domain.UserInfo{Email: email, CreatedAt: time.Now().UTC()}).
		FirstOrCreate(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserInfo fetches the profile for the principal, or ErrNotFound.
func GetUserInfo(ctx context.Context, db *gorm.DB, id string) (*domain.UserInfo, error) {
	var u domain.UserInfo
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserInfoFields applies a column map to the profile identified by id.
// ErrNotFound when no row matched.
func UpdateUserInfoFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.UserInfo{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetMailConnection stores (or clears) a provider connection. Connecting
// records the opaque credential and flips the flag; disconnecting clears
// both. provider must already be validated by the service layer.
func SetMailConnection(ctx context.Context, db *gorm.DB, id, provider, credential string, connected bool) error {
	if !connected {
		credential = ""
	}
	fields := map[string]any{}
	switch provider {
	case "gmail":
		fields["gmail_connected"] = connected
		fields["gmail_credential"] = credential
	case "outlook":
		fields["outlook_connected"] = connected
		fields["outlook_credential"] = credential
	default:
		return gorm.ErrInvalidField
	}
	res := db.WithContext(ctx).
		Model(&domain.UserInfo{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
