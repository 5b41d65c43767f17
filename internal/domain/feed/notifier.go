package feed

import (
	"sync"

	"github.com/sophialabs/apitrail/internal/domain/group"
)

// Handler receives the full ordered collection after every change.
type Handler func(groups []group.Group)

// Notifier forwards collection snapshots to a single registered handler.
type Notifier struct {
	mu      sync.RWMutex
	handler Handler
}

// NewNotifier creates a notifier with no handler.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// OnChange registers h as the only consumer. The last registration wins; nil unregisters.
func (n *Notifier) OnChange(h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = h
}

// Notify invokes the handler synchronously with groups.
func (n *Notifier) Notify(groups []group.Group) {
	n.mu.RLock()
	h := n.handler
	n.mu.RUnlock()

	if h != nil {
		h(groups)
	}
}
