package capabilities

import "context"

// Capabilities que consulta el motor. El contrato real vive en plans-features.
const (
	CapExtractPrescription = "ai:extract_prescription"
)

// Resolver responde si un usuario tiene habilitada una capability de plan.
type Resolver interface {
	Has(ctx context.Context, userID, capability string) (bool, error)
}
