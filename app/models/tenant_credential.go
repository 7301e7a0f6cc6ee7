package models

import "time"

// TenantCredential stores the OAuth token pair issued for one provider location.
// Tokens are stored in their encrypted form.
type TenantCredential struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	LocationID      string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_tenant_credentials_location" json:"location_id"`
	AccessTokenEnc  string     `gorm:"type:text" json:"-"`
	RefreshTokenEnc string     `gorm:"type:text" json:"-"`
	Scope           string     `gorm:"type:varchar(255);default:''" json:"scope"`
	TokenExpiresAt  *time.Time `gorm:"default:null" json:"token_expires_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime;index" json:"updated_at"`
}
