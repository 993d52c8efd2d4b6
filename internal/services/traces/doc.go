// Package tracesvc composes the per-collection stores into the externally
// visible trace views: a transaction together with its steps, and the
// snapshots belonging to a transaction. The composition is join-by-filter
// over independent stores, with no atomicity between the lookups; a listed
// transaction can have steps that outlived it, and vice versa.
package tracesvc
