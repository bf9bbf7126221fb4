package ledger

// Session is one issued session. Timestamps are unix milliseconds.
//
// TokenDigest is the SHA-256 base64url digest of the opaque bearer
// token; the raw token is never stored. LoginIP and LoginUserAgent are
// advisory context captured at login and never used for authorization.
type Session struct {
	ID             int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64  `gorm:"index;not null" json:"userId"`
	TokenDigest    string `gorm:"uniqueIndex;not null" json:"tokenDigest"`
	LoginIP        string `gorm:"default:null" json:"loginIp,omitempty"`
	LoginUserAgent string `gorm:"default:null" json:"loginUserAgent,omitempty"`
	CreatedAt      int64  `gorm:"not null" json:"createdAt"`
	ExpiresAt      int64  `gorm:"not null" json:"expiresAt"`
}

func (Session) TableName() string {
	return "sessions"
}

// Active reports whether the session is still live at nowMs. Expiry is
// exclusive: a row with ExpiresAt == nowMs is already dead.
func (s *Session) Active(nowMs int64) bool {
	return s.ExpiresAt > nowMs
}
