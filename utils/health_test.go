package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthStatusHealthy(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name   string
		status HealthStatus
		want   bool
	}{
		{"never checked", HealthStatus{}, true},
		{"all up", HealthStatus{Mongo: true, Redis: []bool{true, true}, CheckedAt: now}, true},
		{"mongo down", HealthStatus{Mongo: false, Redis: []bool{true}, CheckedAt: now}, false},
		{"one redis down", HealthStatus{Mongo: true, Redis: []bool{true, false}, CheckedAt: now}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.status.Healthy())
		})
	}
}

func TestCheckHealthStoresSnapshot(t *testing.T) {
	t.Cleanup(func() { setHealthStatus(HealthStatus{}) })

	status := CheckHealth(context.Background(), nil, nil)
	assert.False(t, status.Mongo)
	assert.Empty(t, status.Redis)
	assert.False(t, status.Healthy())
	assert.Equal(t, status, GetHealthStatus())
}
