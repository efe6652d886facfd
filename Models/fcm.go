package Models

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// DeviceToken is the FCM registration token of a username's mobile device.
type DeviceToken struct {
	gorm.Model
	Username string `json:"username" gorm:"uniqueIndex"`
	Value    string `json:"value"`
}

type UpdateTokenRequest struct {
	Username string `json:"username" validate:"required"`
	Value    string `json:"value" validate:"required"`
}

// DeviceTokens stores one token per username in the sqlite database.
type DeviceTokens struct {
	DB *gorm.DB
}

func NewDeviceTokens(db *gorm.DB) *DeviceTokens {
	return &DeviceTokens{DB: db}
}

// Save creates the username's token or replaces its value.
func (d *DeviceTokens) Save(username, value string) (DeviceToken, error) {
	username = strings.TrimSpace(username)

	var token DeviceToken
	err := d.DB.Where("username = ?", username).FirstOrCreate(&token, DeviceToken{
		Username: username,
		Value:    value,
	}).Error
	if err != nil {
		return token, fmt.Errorf("save device token for %s: %w", username, err)
	}

	if token.Value != value {
		token.Value = value
		if err := d.DB.Save(&token).Error; err != nil {
			return token, fmt.Errorf("update device token for %s: %w", username, err)
		}
	}
	return token, nil
}

// Lookup returns ErrNotFound when the username never registered a device.
func (d *DeviceTokens) Lookup(username string) (string, error) {
	var token DeviceToken
	err := d.DB.Where("username = ?", username).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup device token for %s: %w", username, err)
	}
	return token.Value, nil
}
