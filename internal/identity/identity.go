// Package identity resolves the local user once into a normalized
// domain.Identity. Chat components take the result and never inspect
// where it came from.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/slotchat/internal/config"
	"github.com/soyeahso/slotchat/internal/domain"
)

// ErrMissingID is returned when no user id is available.
var ErrMissingID = errors.New("identity: missing user id")

// InvalidRoleError reports a role outside the known set.
type InvalidRoleError struct {
	Role string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("identity: invalid role %q", e.Role)
}

// Resolver returns the current user.
type Resolver interface {
	Resolve(ctx context.Context) (domain.Identity, error)
}

// Validate checks that id is usable as the local identity.
func Validate(id domain.Identity) error {
	if id.ID == "" {
		return ErrMissingID
	}
	if !id.Role.Valid() {
		return &InvalidRoleError{Role: string(id.Role)}
	}
	return nil
}

// Static resolves to a fixed identity.
type Static domain.Identity

func (s Static) Resolve(context.Context) (domain.Identity, error) {
	id := domain.Identity(s)
	if err := Validate(id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// FromConfig builds a resolver from the identity config section.
func FromConfig(cfg config.IdentityConfig) Resolver {
	return Static{ID: cfg.ID, Role: domain.Role(cfg.Role)}
}
