// Package member carries the household member making a request.
package member

import (
	"context"
	"strings"
)

type contextKey struct{}

// Identity names who is acting and from which device. Neither is verified.
type Identity struct {
	Name     string
	DeviceID string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func Name(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.Name
}

// Or returns explicit when it is set and the context member otherwise.
func Or(ctx context.Context, explicit string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	return Name(ctx)
}
