package form

import (
	"sync"

	"github.com/rgaviola/osca-forms/model"
)

// PreviewRegistry owns the in-memory upload previews of one session. Every
// stored entry is released when replaced and on session teardown, so an
// abandoned session leaks nothing.
type PreviewRegistry struct {
	mu      sync.Mutex
	entries map[string]*model.Upload
}

func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{entries: map[string]*model.Upload{}}
}

func (p *PreviewRegistry) Put(field string, up *model.Upload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if up == nil {
		delete(p.entries, field)
		return
	}
	p.entries[field] = up
}

func (p *PreviewRegistry) Get(field string) (*model.Upload, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	up, ok := p.entries[field]
	return up, ok
}

func (p *PreviewRegistry) Revoke(field string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, field)
}

func (p *PreviewRegistry) RevokeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = map[string]*model.Upload{}
}
