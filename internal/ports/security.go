package ports

import (
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/treasury/internal/domain"
)

// SecretHasher hashes and verifies approval secrets and passwords.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) error
}

// AuthClaims is the verified identity attached to API requests.
type AuthClaims struct {
	ApproverID uuid.UUID
	Username   string
	Role       domain.Role
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

type TokenSigner interface {
	Sign(claims AuthClaims) (string, error)
	ParseAndValidate(token string) (AuthClaims, error)
}
