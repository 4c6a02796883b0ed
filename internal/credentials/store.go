package credentials

// TokenState is the single mutable credential record for a deployment.
// It is replaced wholesale on every successful refresh, never mutated
// field by field.
type TokenState struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is an absolute epoch-millisecond timestamp; 0 means unknown.
	ExpiresAt int64
	AccountID string
}

// Valid reports whether the state holds an access token that expires more
// than skewMillis in the future of nowMillis.
func (s TokenState) Valid(nowMillis, skewMillis int64) bool {
	return s.AccessToken != "" && s.ExpiresAt > nowMillis+skewMillis
}

// Store persists the token tuple. Implementations must return the last saved
// state from Load; durability beyond process lifetime is backend-specific.
type Store interface {
	Load() (TokenState, error)
	Save(TokenState) error
}
