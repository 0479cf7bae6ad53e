package models

import "time"

// TenantDatabase binds an account to its dedicated vector database
// instance at the hosting provider. At most one row per account; the
// binding is immutable once written.
type TenantDatabase struct {
	ID         int64     `json:"-"`
	VectorDBID string    `json:"vectorDbId"`
	AccountID  int64     `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
