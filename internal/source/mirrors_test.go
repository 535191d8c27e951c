package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMirrorPool(t *testing.T) {
	urls := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	now := time.Unix(1700000000, 0)
	p := newMirrorPool(urls, time.Minute)
	p.now = func() time.Time { return now }

	assert.Equal(t, urls[0], p.Next())
	assert.Equal(t, urls[0], p.Next(), "healthy primary is sticky")

	p.MarkFailed(urls[0])
	assert.Equal(t, urls[1], p.Next())

	p.MarkFailed(urls[1])
	assert.Equal(t, urls[2], p.Next())

	total, healthy, failed := p.Stats()
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, healthy)
	assert.Equal(t, 2, failed)

	p.MarkHealthy(urls[1])
	assert.Equal(t, urls[2], p.Next(), "pointer stays on the working mirror")

	now = now.Add(2 * time.Minute)
	p.MarkFailed(urls[2])
	assert.Equal(t, urls[0], p.Next(), "cooldown expired")
}

func TestMirrorPool_AllFailedResets(t *testing.T) {
	urls := []string{"https://a.example.com", "https://b.example.com"}
	p := newMirrorPool(urls, time.Minute)
	p.MarkFailed(urls[0])
	p.MarkFailed(urls[1])

	assert.Equal(t, urls[0], p.Next())
	_, healthy, _ := p.Stats()
	assert.Equal(t, 2, healthy)
}

func TestMirrorPool_Empty(t *testing.T) {
	assert.Empty(t, newMirrorPool(nil, 0).Next())
}
