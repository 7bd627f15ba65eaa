package user

import "time"

// User is the owner of investments and wallets. ReferredBy is the upward
// sponsor edge; registration guarantees the sponsor graph is a tree.
type User struct {
	ID         string
	Email      string
	Name       string
	ReferredBy string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
