package offline

import (
	"context"
	"errors"
	"testing"
	"time"

	"beacon/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProducer(t *testing.T, d Deliverer) (*Producer, *Store) {
	t.Helper()
	s, _ := openStore(t)
	p := NewProducer(s, d, DefaultRetryPolicy(), nil)
	p.Now = func() time.Time { return base }
	p.NewID = func() string { return "local-1" }
	return p, s
}

func mentionRequest() models.CreateRequest {
	return models.CreateRequest{UserID: "u2", Message: "@u2 look", Category: models.CategoryMention, CreatedBy: "u1"}
}

func TestProducerOnlineRemovesItem(t *testing.T) {
	d := &scriptedDeliverer{}
	p, s := newProducer(t, d)

	res, err := p.Create(context.Background(), mentionRequest())
	require.NoError(t, err)
	assert.False(t, res.Queued)
	require.NotNil(t, res.Notification)
	assert.Equal(t, "local-1", res.Notification.ClientID, "queue id travels as the idempotency key")

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProducerOfflineKeepsItem(t *testing.T) {
	d := &scriptedDeliverer{fail: map[string]error{"local-1": errors.New("dial tcp: network is unreachable")}}
	p, s := newProducer(t, d)

	res, err := p.Create(context.Background(), mentionRequest())
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Nil(t, res.Notification)
	assert.Equal(t, "local-1", res.ItemID)

	item, err := s.Get(context.Background(), "local-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, item.State)
	assert.Equal(t, 1, item.Attempts)
	assert.Equal(t, "local-1", item.Request.ClientID)
}

func TestProducerRejectsUnauthenticated(t *testing.T) {
	p, s := newProducer(t, &scriptedDeliverer{})
	req := mentionRequest()
	req.CreatedBy = ""

	_, err := p.Create(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProducerSurfacesQueuePersistFailure(t *testing.T) {
	d := &scriptedDeliverer{}
	p, s := newProducer(t, d)
	require.NoError(t, s.Close())

	_, err := p.Create(context.Background(), mentionRequest())
	assert.ErrorIs(t, err, ErrQueuePersist)
	assert.Empty(t, d.Calls(), "nothing is sent that could not be made durable")
}

func TestProducerReturnsRejection(t *testing.T) {
	d := &scriptedDeliverer{fail: map[string]error{"local-1": Permanent(errors.New("400 invalid category"))}}
	p, s := newProducer(t, d)

	_, err := p.Create(context.Background(), mentionRequest())
	assert.ErrorContains(t, err, "invalid category")

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
