package plansfeatures

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Resolver decide capabilities de plan (hoy solo gatea el extractor de recetas).
type Resolver struct {
	client   *Client
	allowAll bool
}

// NewResolver crea un resolver.
// Con ALLOW_ALL_CAPABILITIES=true (env) todo devuelve true (modo dev).
func NewResolver(client *Client) *Resolver {
	allowAll := strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_ALL_CAPABILITIES")), "true")
	return &Resolver{
		client:   client,
		allowAll: allowAll,
	}
}

func (r *Resolver) Has(ctx context.Context, userID string, capability string) (bool, error) {
	capability = strings.TrimSpace(capability)
	if capability == "" {
		return false, errors.New("capability required")
	}

	if r != nil && r.allowAll {
		return true, nil
	}

	if r == nil || r.client == nil || !r.client.IsConfigured() {
		// Mejor fallar explícito que permitir sin control.
		return false, ErrPlansNotConfigured
	}

	resp, err := r.client.GetCapabilities(ctx, userID)
	if err != nil {
		return false, err
	}

	return resp.Capabilities[capability], nil
}
