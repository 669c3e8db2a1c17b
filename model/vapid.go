package model

import "time"

// VAPIDConfig is the single-row server identity for the Web Push protocol:
// a key pair plus a contact subject ("mailto:..." or an https URL) that push
// services use to verify the sender. The dispatcher loads it once per batch.
type VAPIDConfig struct {
	ID         int64     `json:"id"`
	PublicKey  string    `json:"publicKey" db:"public_key"`
	PrivateKey string    `json:"-" db:"private_key"`
	Subject    string    `json:"subject"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for VAPIDConfig.
func (m VAPIDConfig) TableName() string {
	return tablePrefix + "vapid_config"
}

// NewVAPIDConfig creates a VAPID configuration record.
func NewVAPIDConfig(publicKey, privateKey, subject string) VAPIDConfig {
	return VAPIDConfig{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		Subject:    subject,
		CreatedAt:  time.Now(),
	}
}

// IsComplete reports whether all three fields required for sending are set.
func (m VAPIDConfig) IsComplete() bool {
	return m.PublicKey != "" && m.PrivateKey != "" && m.Subject != ""
}
