package conversation

import (
	"sync"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role
	Content string
}

type Style int

const (
	StyleConcise Style = iota
	StyleDetailed
)

func (s Style) String() string {
	if s == StyleDetailed {
		return "detailed"
	}

	return "concise"
}

// Directive is the system instruction asking for a reply of this style.
func (s Style) Directive() string {
	return "Please provide a " + s.String() + " response."
}

// Context is the ordered turn history of a conversation plus its response style.
// At most one style directive turn is ever present.
type Context struct {
	mu sync.RWMutex

	systemPrompt string
	turns        []Turn
	style        Style
	// index of the style directive in turns, -1 when absent
	directive int
}

func NewContext(systemPrompt string) *Context {
	c := &Context{systemPrompt: systemPrompt}
	c.reset()

	return c
}

func (c *Context) AddUser(content string) {
	c.add(Turn{Role: RoleUser, Content: content})
}

func (c *Context) AddAssistant(content string) {
	c.add(Turn{Role: RoleAssistant, Content: content})
}

func (c *Context) add(turn Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turn)
}

// SetStyle switches the response style. It reports false and leaves the turns
// untouched when the style is already current. Otherwise the existing directive
// is rewritten, or a new one is inserted right before the latest turn.
func (c *Context) SetStyle(style Style) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if style == c.style {
		return false
	}

	c.style = style
	turn := Turn{Role: RoleSystem, Content: style.Directive()}

	if c.directive >= 0 {
		c.turns[c.directive] = turn
		return true
	}

	pos := len(c.turns) - 1
	if pos < 0 {
		pos = 0
	}

	c.turns = append(c.turns, Turn{})
	copy(c.turns[pos+1:], c.turns[pos:])
	c.turns[pos] = turn
	c.directive = pos

	return true
}

func (c *Context) Style() Style {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.style
}

// Turns returns a copy of the history, oldest first.
func (c *Context) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Turn, len(c.turns))
	copy(result, c.turns)

	return result
}

func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.turns)
}

func (c *Context) DirectiveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.directive < 0 {
		return 0
	}

	return 1
}

// Reset drops the history and returns to the concise style.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
}

func (c *Context) reset() {
	c.turns = nil
	c.style = StyleConcise
	c.directive = -1

	if c.systemPrompt != "" {
		c.turns = append(c.turns, Turn{Role: RoleSystem, Content: c.systemPrompt})
	}
}
