package store

// Filter inspects a decoded value and either rejects it or returns the value
// to keep, possibly rewritten.
type Filter[V any] func(V) (V, bool)

// Where keeps the values for which pred holds.
func Where[V any](pred func(V) bool) Filter[V] {
	return func(v V) (V, bool) {
		return v, pred(v)
	}
}

// Map rewrites every value.
func Map[V any](fn func(V) V) Filter[V] {
	return func(v V) (V, bool) {
		return fn(v), true
	}
}

// Chain applies filters in order and stops at the first rejection.
func Chain[V any](filters ...Filter[V]) Filter[V] {
	return func(v V) (V, bool) {
		for _, f := range filters {
			var ok bool
			if v, ok = f(v); !ok {
				return v, false
			}
		}
		return v, true
	}
}
