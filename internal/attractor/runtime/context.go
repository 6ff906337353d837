package runtime

import "sort"

// Context is the run context: an ordered key -> string map carried
// alongside every payload. Insertion semantics: setting a new key appends
// it to the iteration order; setting an existing key updates its value in
// place, keeping its original position.
//
// Reserved keys the executor itself writes: "goal", "graph.goal" (set at
// initialization), "outcome" (set after each step to the latest status),
// and "preferred_label" (set when the last outcome carried one).
type Context struct {
	order  []string
	values map[string]string
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{values: map[string]string{}}
}

// ContextFromMap builds a context from an existing map. Key order follows
// Go's (unspecified) map iteration order; callers that need deterministic
// ordering should build the context with repeated Set calls instead.
func ContextFromMap(m map[string]string) *Context {
	c := NewContext()
	for k, v := range m {
		c.Set(k, v)
	}
	return c
}

// Set inserts or updates key. New keys are appended to the iteration
// order; existing keys keep their position.
func (c *Context) Set(key, val string) {
	if c == nil {
		return
	}
	if c.values == nil {
		c.values = map[string]string{}
	}
	if _, exists := c.values[key]; !exists {
		c.order = append(c.order, key)
	}
	c.values[key] = val
}

// Get returns the value for key and whether it was present.
func (c *Context) Get(key string) (string, bool) {
	if c == nil || c.values == nil {
		return "", false
	}
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the value for key, or def when unset.
func (c *Context) GetString(key, def string) string {
	if v, ok := c.Get(key); ok {
		return v
	}
	return def
}

// Keys returns the keys in insertion order.
func (c *Context) Keys() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Snapshot returns a plain map copy suitable for JSON serialization (e.g.
// context_before/context_after in an execution log step entry).
func (c *Context) Snapshot() map[string]string {
	out := map[string]string{}
	if c == nil {
		return out
	}
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Clone returns an independent deep copy. Every node variant must clone
// (directly or via WithUpdates) rather than mutate a received context,
// since payloads are immutable snapshots.
func (c *Context) Clone() *Context {
	clone := NewContext()
	if c == nil {
		return clone
	}
	clone.order = append([]string(nil), c.order...)
	clone.values = make(map[string]string, len(c.values))
	for k, v := range c.values {
		clone.values[k] = v
	}
	return clone
}

// WithUpdates returns a new context: a clone of c with updates applied on
// top (new keys appended, existing keys updated in place). c itself is
// left untouched.
func (c *Context) WithUpdates(updates map[string]string) *Context {
	next := c.Clone()
	for _, k := range sortedKeys(updates) {
		next.Set(k, updates[k])
	}
	return next
}

// sortedKeys gives WithUpdates a deterministic application order when a
// caller passes more than one update in the same call.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
