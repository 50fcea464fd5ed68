package session

import (
	"sync"
	"time"
)

type (
	// Entry is one completed exchange.
	Entry struct {
		Query    string
		Response string
	}

	// Context is a single conversation: a bounded FIFO of past exchanges
	// plus the detected language. History ops are safe for concurrent use;
	// whole turns are serialized through BeginTurn/EndTurn.
	Context struct {
		mu     sync.RWMutex
		turnMu sync.Mutex

		id        string
		title     string
		language  string
		createdAt time.Time
		updatedAt time.Time

		entries []Entry
		limit   int
	}
)

func newContext(id, language string, limit int) *Context {
	now := time.Now()
	return &Context{
		id:        id,
		language:  language,
		createdAt: now,
		updatedAt: now,
		limit:     limit,
	}
}

func (c *Context) ID() string { return c.id }

// BeginTurn serializes query processing: one in-flight turn per session.
func (c *Context) BeginTurn() { c.turnMu.Lock() }
func (c *Context) EndTurn()   { c.turnMu.Unlock() }

// Append records a completed exchange, evicting the oldest entry once the
// history limit is reached.
func (c *Context) Append(query, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, Entry{Query: query, Response: response})
	if len(c.entries) > c.limit {
		c.entries = c.entries[len(c.entries)-c.limit:]
	}
	c.updatedAt = time.Now()
}

// History returns a copy of the exchanges, oldest first.
func (c *Context) History() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Context) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language
}

func (c *Context) SetLanguage(lang string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = lang
	c.updatedAt = time.Now()
}

func (c *Context) Title() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.title
}

func (c *Context) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = title
	c.updatedAt = time.Now()
}

func (c *Context) CreatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.createdAt
}

func (c *Context) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
