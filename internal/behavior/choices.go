package behavior

// ChoiceTracker records accept and skip events against a Store using its
// own clock.
type ChoiceTracker struct {
	store *Store
	clock Clock
}

// NewChoiceTracker creates a tracker that writes to store. A nil clock uses
// the system clock.
func NewChoiceTracker(store *Store, clock Clock) *ChoiceTracker {
	if clock == nil {
		clock = realClock{}
	}
	return &ChoiceTracker{store: store, clock: clock}
}

// Accept records that the user took a suggestion of the given type.
func (t *ChoiceTracker) Accept(kind, detail string) {
	t.store.RecordChoice(kind, true, detail, t.clock.Now())
}

// Skip records that the user passed on a suggestion of the given type.
func (t *ChoiceTracker) Skip(kind, detail string) {
	t.store.RecordChoice(kind, false, detail, t.clock.Now())
}
