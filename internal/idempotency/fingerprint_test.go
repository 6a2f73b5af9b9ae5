package idempotency_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/food-order-service/internal/idempotency"
)

func TestFingerprint(t *testing.T) {
	a, err := idempotency.Fingerprint([]byte(`{"customerId":"c-1","restaurantId":"r-1","items":[{"itemId":"i-1","quantity":2}]}`))
	assert.NoError(t, err)

	// Same payload, different field order.
	b, err := idempotency.Fingerprint([]byte(`{"restaurantId":"r-1","items":[{"quantity":2,"itemId":"i-1"}],"customerId":"c-1"}`))
	assert.NoError(t, err)
	assert.Equal(t, a, b, "field order must not change the fingerprint")

	// A semantically different payload.
	c, err := idempotency.Fingerprint([]byte(`{"customerId":"c-1","restaurantId":"r-1","items":[{"itemId":"i-1","quantity":3}]}`))
	assert.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestFingerprint_InvalidJSON(t *testing.T) {
	_, err := idempotency.Fingerprint([]byte(`{"broken":`))
	assert.Error(t, err)
}

func TestDeriveScopedKey(t *testing.T) {
	base := "550e8400-e29b-41d4-a716-446655440000"

	payment := idempotency.DeriveScopedKey(base, "payment")
	delivery := idempotency.DeriveScopedKey(base, "delivery")

	assert.Len(t, payment, 36)
	assert.Len(t, delivery, 36)
	assert.NotEqual(t, payment, delivery, "scopes must not collide")
	assert.NotEqual(t, base, payment, "derived key must differ from the base key")

	// Stable across calls.
	assert.Equal(t, payment, idempotency.DeriveScopedKey(base, "payment"))
	assert.Equal(t, delivery, idempotency.DeriveScopedKey(base, "delivery"))

	// Distinct base keys derive distinct scoped keys.
	other := idempotency.DeriveScopedKey("another-key", "payment")
	assert.NotEqual(t, payment, other)
}
