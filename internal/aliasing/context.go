package aliasing

import "fmt"

// Context is an immutable value/token alias table. Extending it returns a
// fresh Context and never mutates the receiver, so one event's obfuscation
// passes can thread a single table through new_row, diff and old_row while
// staying independently testable. The zero value is usable.
type Context struct {
	byValue  map[string]string
	byToken  map[string]string
	counters map[string]int
}

// NewContext returns an empty alias table.
func NewContext() Context {
	return Context{}
}

// Token returns the alias already minted for the value, if any.
func (c Context) Token(value string) (string, bool) {
	token, ok := c.byValue[value]
	return token, ok
}

// Value reverses a token back to the original value, if known.
func (c Context) Value(token string) (string, bool) {
	value, ok := c.byToken[token]
	return value, ok
}

// Aliases returns a copy of the token to value table.
func (c Context) Aliases() map[string]string {
	out := make(map[string]string, len(c.byToken))
	for token, value := range c.byToken {
		out[token] = value
	}
	return out
}

// Len reports how many aliases have been minted.
func (c Context) Len() int {
	return len(c.byValue)
}

// WithAlias returns the token for the value, minting a new one in the given
// category when the value has not been seen before. The same value always
// maps to the same token regardless of category order.
func (c Context) WithAlias(category, value string) (string, Context) {
	if token, ok := c.byValue[value]; ok {
		return token, c
	}

	next := c.clone()
	ordinal := next.counters[category]
	next.counters[category] = ordinal + 1

	token := fmt.Sprintf("%s %s", category, letterLabel(ordinal))
	next.byValue[value] = token
	next.byToken[token] = value
	return token, next
}

func (c Context) clone() Context {
	next := Context{
		byValue:  make(map[string]string, len(c.byValue)+1),
		byToken:  make(map[string]string, len(c.byToken)+1),
		counters: make(map[string]int, len(c.counters)+1),
	}
	for k, v := range c.byValue {
		next.byValue[k] = v
	}
	for k, v := range c.byToken {
		next.byToken[k] = v
	}
	for k, v := range c.counters {
		next.counters[k] = v
	}
	return next
}

// letterLabel converts 0,1,...,25,26 into A,B,...,Z,AA spreadsheet style.
func letterLabel(n int) string {
	label := ""
	for {
		label = string(rune('A'+n%26)) + label
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return label
}
