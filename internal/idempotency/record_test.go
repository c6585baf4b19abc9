package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashRequestIsStablePerPayload(t *testing.T) {
	type payload struct {
		Number string
		Amount float64
	}

	a, err := HashRequest(payload{Number: "JV-001", Amount: 100})
	require.NoError(t, err)
	b, err := HashRequest(payload{Number: "JV-001", Amount: 100})
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)

	c, err := HashRequest(payload{Number: "JV-001", Amount: 101})
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestRecordExpired(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	rec := Record{ExpiresAt: now.Add(time.Hour)}
	require.False(t, rec.Expired(now))

	rec.ExpiresAt = now.Add(-time.Minute)
	require.True(t, rec.Expired(now))

	rec.ExpiresAt = time.Time{}
	require.False(t, rec.Expired(now))
}
