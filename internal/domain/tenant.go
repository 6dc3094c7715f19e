package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProvisioningState tracks how far tenant creation got. The registry row is
// written before the physical database exists, so a crash or a provisioning
// failure leaves a detectable pending/failed row instead of a silent half-tenant.
type ProvisioningState string

const (
	ProvisioningPending ProvisioningState = "pending"
	ProvisioningReady   ProvisioningState = "ready"
	ProvisioningFailed  ProvisioningState = "failed"
)

type Tenant struct {
	ID                 string            `json:"id"`
	DatabaseIdentifier string            `json:"database_identifier"`
	SystemName         string            `json:"system_name"`
	Logo               string            `json:"logo,omitempty"`
	ProvisioningState  ProvisioningState `json:"provisioning_state"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`

	// Populated when domains are loaded alongside the tenant.
	Domains []Domain `json:"domains,omitempty"`
}

// Database returns the identifier of the tenant's physical database,
// defaulting to the tenant id.
func (t *Tenant) Database() string {
	if t.DatabaseIdentifier != "" {
		return t.DatabaseIdentifier
	}
	return t.ID
}

type Domain struct {
	ID        uuid.UUID `json:"id"`
	Domain    string    `json:"domain"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
}
