package identity

import (
	"time"

	id "accessops/pkg/domain"
)

// User captures the primary identity tracked by the service. Storage of the
// actual user record lives behind the store interfaces; the password hash is
// opaque to everything except pkg/secrets.
type User struct {
	ID           id.UserID
	Email        string
	PasswordHash string
	DisplayName  string
	Role         Role
	CreatedAt    time.Time
}
