package member

import (
	"context"
	"testing"
)

func TestWithIdentityAndFromContext(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{Name: "sam", DeviceID: "phone"})
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected Identity in context")
	}
	if got.Name != "sam" {
		t.Errorf("Name = %q, want %q", got.Name, "sam")
	}
	if got.DeviceID != "phone" {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, "phone")
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected false for missing Identity")
	}
	if got := Name(context.Background()); got != "" {
		t.Errorf("Name = %q, want empty", got)
	}
}

func TestOr(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{Name: "sam"})
	tests := []struct {
		name     string
		ctx      context.Context
		explicit string
		want     string
	}{
		{"explicit wins", ctx, "alex", "alex"},
		{"blank explicit falls back", ctx, "  ", "sam"},
		{"no identity", context.Background(), "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Or(tt.ctx, tt.explicit); got != tt.want {
				t.Errorf("Or = %q, want %q", got, tt.want)
			}
		})
	}
}
