// Package profile owns the per-user enrollment state: the ordered list of
// enrolled examples, the label→action-id bindings, and the on-disk layout of
// stored audio. Profiles are independent JSON documents keyed by the
// normalised user identifier.
package profile

// Example is one enrolled audio instance: a stable path to the stored
// capture and its normalised command label. Immutable once created.
type Example struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

// Profile is the durable per-user record. Examples keep insertion order and
// may repeat a label; enrollment is additive. Actions maps each label to at
// most one action id; the last enrollment's id wins.
//
// Version increases monotonically on every mutation. The trained model
// bundle records the version it was built from, making a stale bundle
// detectable rather than assumed-fixed by retraining.
type Profile struct {
	Version  int64             `json:"version"`
	Examples []Example         `json:"examples"`
	Actions  map[string]string `json:"actions"`
}

// New returns an empty profile ready for mutation.
func New() *Profile {
	return &Profile{Actions: make(map[string]string)}
}

// AddExample appends an example and bumps the version.
func (p *Profile) AddExample(path, label string) {
	p.Examples = append(p.Examples, Example{Path: path, Label: label})
	p.Version++
}

// BindAction records label→actionID, overwriting any previous binding, and
// bumps the version. An empty actionID removes the binding.
func (p *Profile) BindAction(label, actionID string) {
	if p.Actions == nil {
		p.Actions = make(map[string]string)
	}
	if actionID == "" {
		delete(p.Actions, label)
	} else {
		p.Actions[label] = actionID
	}
	p.Version++
}

// Action returns the action id bound to label, if any.
func (p *Profile) Action(label string) (string, bool) {
	id, ok := p.Actions[label]
	return id, ok
}

// RemoveLabel deletes every example of label and its action binding,
// returning the number of examples removed. The version is bumped even when
// nothing matched, since the caller treats the operation as a mutation.
func (p *Profile) RemoveLabel(label string) int {
	kept := p.Examples[:0]
	removed := 0
	for _, ex := range p.Examples {
		if ex.Label == label {
			removed++
			continue
		}
		kept = append(kept, ex)
	}
	p.Examples = kept
	delete(p.Actions, label)
	p.Version++
	return removed
}

// Labels returns the distinct labels in insertion order of first appearance.
func (p *Profile) Labels() []string {
	seen := make(map[string]bool, len(p.Examples))
	var labels []string
	for _, ex := range p.Examples {
		if !seen[ex.Label] {
			seen[ex.Label] = true
			labels = append(labels, ex.Label)
		}
	}
	return labels
}

// CountByLabel returns the number of examples enrolled per label.
func (p *Profile) CountByLabel() map[string]int {
	counts := make(map[string]int)
	for _, ex := range p.Examples {
		counts[ex.Label]++
	}
	return counts
}
