package logger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTenantBinding(t *testing.T) {
	t.Run("CurrentTenant returns bound tenant", func(t *testing.T) {
		tenantID := uuid.New()
		ctx, _ := BindTenant(context.Background(), zap.NewNop(), tenantID)

		assert.Equal(t, tenantID, CurrentTenant(ctx))
	})

	t.Run("CurrentTenant returns Nil when unbound", func(t *testing.T) {
		assert.Equal(t, uuid.Nil, CurrentTenant(context.Background()))
	})

	t.Run("bindings are independent per context", func(t *testing.T) {
		tenantA := uuid.New()
		tenantB := uuid.New()
		base := context.Background()

		ctxA, _ := BindTenant(base, zap.NewNop(), tenantA)
		ctxB, _ := BindTenant(base, zap.NewNop(), tenantB)

		assert.Equal(t, tenantA, CurrentTenant(ctxA))
		assert.Equal(t, tenantB, CurrentTenant(ctxB))
		assert.Equal(t, uuid.Nil, CurrentTenant(base))
	})
}

func TestFromContext(t *testing.T) {
	t.Run("returns attached logger", func(t *testing.T) {
		l := zap.NewNop()
		ctx := WithContext(context.Background(), l)

		assert.Same(t, l, FromContext(ctx))
	})

	t.Run("returns no-op logger when absent", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})
}

func TestRequestID(t *testing.T) {
	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-123")
	assert.Equal(t, "req-123", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}
