// Package singleflight coalesces concurrent calls for the same key into a
// single execution whose result every caller shares. restkit uses it to
// make sure concurrent 401s trigger one token refresh, not a stampede.
package singleflight

import "sync"

// Group manages a set of in-flight calls keyed by string.
type Group struct {
	mu sync.Mutex
	m  map[string]*call
}

type call struct {
	wg  sync.WaitGroup
	val interface{}
	err error
}

// New creates an empty Group.
func New() *Group {
	return &Group{m: make(map[string]*call)}
}

// Do executes fn, making sure only one execution per key is in flight at a
// time. Duplicate callers block until the original completes and receive
// the same results. The key is forgotten as soon as the call settles, so a
// later Do always executes fresh.
func (g *Group) Do(key string, fn func() (interface{}, error)) (interface{}, error) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err
	}

	c := &call{}
	c.wg.Add(1)
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	if g.m[key] == c {
		delete(g.m, key)
	}
	g.mu.Unlock()
	c.wg.Done()

	return c.val, c.err
}

// Forget drops the key, letting the next Do execute even if a previous call
// is still running.
func (g *Group) Forget(key string) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}
