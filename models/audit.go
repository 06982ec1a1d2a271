package models

import (
	"time"
)

type AuditKind string

const (
	AuditKindCreditOverride AuditKind = "credit-override"
)

// AuditEntry records an action that bypassed a business rule, such as an
// authorized role overriding the overdue-credit gate.
type AuditEntry struct {
	ID           string    `json:"id"`
	At           time.Time `json:"at"`
	Kind         AuditKind `json:"kind"`
	CustomerId   string    `json:"customer_id,omitempty"`
	SaleId       string    `json:"sale_id,omitempty"`
	AuthorizedBy string    `json:"authorized_by,omitempty"`
	Details      string    `json:"details,omitempty"`
}
