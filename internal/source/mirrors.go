package source

import (
	"sync"
	"time"
)

const defaultMirrorCooldown = 30 * time.Second

// mirrorPool rotates between equivalent history endpoints, skipping the ones
// that failed within the cooldown.
type mirrorPool struct {
	urls       []string
	currentIdx int
	failedUrls map[string]time.Time
	cooldown   time.Duration
	now        func() time.Time
	mutex      sync.RWMutex
}

func newMirrorPool(urls []string, cooldown time.Duration) *mirrorPool {
	if cooldown <= 0 {
		cooldown = defaultMirrorCooldown
	}
	return &mirrorPool{
		urls:       urls,
		failedUrls: make(map[string]time.Time),
		cooldown:   cooldown,
		now:        time.Now,
	}
}

// Next returns the first healthy url starting from the current one. The
// pointer only advances past urls that failed, so a healthy primary keeps
// being used.
func (p *mirrorPool) Next() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.urls) == 0 {
		return ""
	}
	for i := 0; i < len(p.urls); i++ {
		u := p.urls[p.currentIdx]
		if failedAt, failed := p.failedUrls[u]; !failed || p.now().Sub(failedAt) > p.cooldown {
			return u
		}
		p.currentIdx = (p.currentIdx + 1) % len(p.urls)
	}

	// every mirror is cooling down, start over from the primary
	p.failedUrls = make(map[string]time.Time)
	p.currentIdx = 0
	return p.urls[0]
}

func (p *mirrorPool) MarkFailed(u string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.failedUrls[u] = p.now()
}

func (p *mirrorPool) MarkHealthy(u string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	delete(p.failedUrls, u)
}

func (p *mirrorPool) Stats() (total, healthy, failed int) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	total = len(p.urls)
	failed = len(p.failedUrls)
	healthy = total - failed
	return
}
