package dom

// MutationRecord describes one child-list change under Target.
type MutationRecord struct {
	Target  *Element
	Added   []*Element
	Removed []*Element
}

// Subscription is an active mutation watch created by Observe.
type Subscription struct {
	doc      *Document
	target   *Element
	subtree  bool
	callback func([]MutationRecord)
}

// Observe watches child-list changes of target, and of its whole subtree
// when subtree is set. Callbacks run synchronously after each mutation batch,
// on the goroutine that mutated the tree.
func (d *Document) Observe(target *Element, subtree bool, callback func([]MutationRecord)) (*Subscription, error) {
	if target == nil {
		return nil, ErrNilElement
	}

	sub := &Subscription{doc: d, target: target, subtree: subtree, callback: callback}

	d.mu.Lock()
	d.subs[sub] = struct{}{}
	d.mu.Unlock()
	return sub, nil
}

// Disconnect stops delivery. It is safe to call more than once.
func (s *Subscription) Disconnect() {
	s.doc.mu.Lock()
	delete(s.doc.subs, s)
	s.doc.mu.Unlock()
}

// Active reports whether the subscription still receives records.
func (s *Subscription) Active() bool {
	s.doc.mu.RLock()
	defer s.doc.mu.RUnlock()
	_, ok := s.doc.subs[s]
	return ok
}

func (d *Document) notify(record MutationRecord) {
	if len(record.Added) == 0 && len(record.Removed) == 0 {
		return
	}

	d.mu.RLock()
	var targets []*Subscription
	for sub := range d.subs {
		if sub.target.node == record.Target.node ||
			(sub.subtree && isAncestor(sub.target.node, record.Target.node)) {
			targets = append(targets, sub)
		}
	}
	d.mu.RUnlock()

	batch := []MutationRecord{record}
	for _, sub := range targets {
		sub.callback(batch)
	}
}
