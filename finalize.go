package replica

// finalize reapplies the integrity level of every original onto its clone.
// It runs once all properties are in place.
func (e *engine) finalize() {
	for _, p := range e.deferred {
		switch {
		case p.orig.IsFrozen():
			p.clone.Freeze()
		case p.orig.IsSealed():
			p.clone.Seal()
		case !p.orig.IsExtensible():
			p.clone.PreventExtensions()
		}
	}
	e.deferred = nil
}
