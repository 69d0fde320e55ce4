// Package uistate owns the selection and modal state that gates which
// entity dispatch and edit operations act on. Subscribers receive a
// snapshot after every change.
package uistate

import (
	"sync"

	"github.com/hypermarketllc/hookline/internal/webhooks"
)

// Snapshot is an immutable view of the UI state at one point in time.
type Snapshot struct {
	SelectedWebhook         *webhooks.Definition      `json:"selected_webhook"`
	SelectedIncomingWebhook *webhooks.IncomingWebhook `json:"selected_incoming_webhook"`
	WebhookModalOpen        bool                      `json:"webhook_modal_open"`
	IncomingModalOpen       bool                      `json:"incoming_modal_open"`
}

// State tracks the current selection and modal flags. A nil selection with
// an open modal means a create flow; a non-nil selection means edit.
type State struct {
	mu sync.Mutex

	selectedWebhook  *webhooks.Definition
	selectedIncoming *webhooks.IncomingWebhook
	webhookModal     bool
	incomingModal    bool

	nextSub     int
	subscribers map[int]chan Snapshot
}

// New creates an empty UI state.
func New() *State {
	return &State{subscribers: make(map[int]chan Snapshot)}
}

// OpenWebhookEditor selects def and opens the webhook modal.
func (s *State) OpenWebhookEditor(def *webhooks.Definition) {
	s.mu.Lock()
	s.selectedWebhook = def
	s.webhookModal = true
	s.notifyLocked()
	s.mu.Unlock()
}

// OpenWebhookCreator clears the selection before opening the modal, so a
// nil selection marks the flow as create.
func (s *State) OpenWebhookCreator() {
	s.mu.Lock()
	s.selectedWebhook = nil
	s.webhookModal = true
	s.notifyLocked()
	s.mu.Unlock()
}

// CloseWebhookModal clears the selection and closes the modal. Called on
// cancel and after a successful save alike.
func (s *State) CloseWebhookModal() {
	s.mu.Lock()
	s.selectedWebhook = nil
	s.webhookModal = false
	s.notifyLocked()
	s.mu.Unlock()
}

// OpenIncomingEditor selects hook and opens the incoming-endpoint modal.
func (s *State) OpenIncomingEditor(hook *webhooks.IncomingWebhook) {
	s.mu.Lock()
	s.selectedIncoming = hook
	s.incomingModal = true
	s.notifyLocked()
	s.mu.Unlock()
}

// OpenIncomingCreator clears the incoming selection before opening the modal.
func (s *State) OpenIncomingCreator() {
	s.mu.Lock()
	s.selectedIncoming = nil
	s.incomingModal = true
	s.notifyLocked()
	s.mu.Unlock()
}

// CloseIncomingModal clears the incoming selection and closes the modal.
func (s *State) CloseIncomingModal() {
	s.mu.Lock()
	s.selectedIncoming = nil
	s.incomingModal = false
	s.notifyLocked()
	s.mu.Unlock()
}

// SelectWebhook sets the selection without touching modal flags, for row
// highlighting ahead of a dispatch.
func (s *State) SelectWebhook(def *webhooks.Definition) {
	s.mu.Lock()
	s.selectedWebhook = def
	s.notifyLocked()
	s.mu.Unlock()
}

// RefreshWebhook replaces the selected definition when it is the one that
// was dispatched, so fresh execution status shows on the selected row
// without a re-select. Other selections are untouched.
func (s *State) RefreshWebhook(def *webhooks.Definition) {
	s.mu.Lock()
	if s.selectedWebhook != nil && s.selectedWebhook.ID == def.ID {
		s.selectedWebhook = def
		s.notifyLocked()
	}
	s.mu.Unlock()
}

// ClearSelections resets both selections, e.g. after a delete.
func (s *State) ClearSelections() {
	s.mu.Lock()
	s.selectedWebhook = nil
	s.selectedIncoming = nil
	s.notifyLocked()
	s.mu.Unlock()
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers a listener. The returned channel receives a snapshot
// after every change; slow consumers miss updates rather than block the
// state. Call the returned function to unsubscribe.
func (s *State) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++

	ch := make(chan Snapshot, 8)
	s.subscribers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(c)
		}
	}

	return ch, cancel
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		SelectedWebhook:         s.selectedWebhook,
		SelectedIncomingWebhook: s.selectedIncoming,
		WebhookModalOpen:        s.webhookModal,
		IncomingModalOpen:       s.incomingModal,
	}
}

func (s *State) notifyLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}
