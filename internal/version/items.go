package version

import "strings"

type itemKind int

const (
	numberItem itemKind = iota
	qualifierItem
	listItem
)

// qualifiers lists the known qualifiers in order. Unknown qualifiers sort
// after all of them and lexically among themselves.
var qualifiers = []string{"alpha", "beta", "milestone", "rc", "snapshot", "", "sp"}

var qualifierAliases = map[string]string{
	"cr":      "rc",
	"final":   "",
	"ga":      "",
	"release": "",
}

const releaseIndex = 5

// item is one node of a parsed version: a number (digits without leading
// zeros), a qualifier, or a nested list started by '-' or a digit/letter switch.
type item struct {
	kind  itemKind
	value string
	items []*item
}

func newNumber(digits string) *item {
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}
	return &item{kind: numberItem, value: digits}
}

func newQualifier(value string, followedByDigit bool) *item {
	if followedByDigit && len(value) == 1 {
		switch value[0] {
		case 'a':
			value = "alpha"
		case 'b':
			value = "beta"
		case 'm':
			value = "milestone"
		}
	}
	if alias, ok := qualifierAliases[value]; ok {
		value = alias
	}
	return &item{kind: qualifierItem, value: value}
}

func qualifierIndex(q string) int {
	for i, known := range qualifiers {
		if known == q {
			return i
		}
	}
	return len(qualifiers)
}

func (it *item) isNull() bool {
	switch it.kind {
	case numberItem:
		return it.value == "0"
	case qualifierItem:
		return qualifierIndex(it.value) == releaseIndex
	default:
		return len(it.items) == 0
	}
}

func (it *item) add(child *item) { it.items = append(it.items, child) }

// normalize drops trailing null items, looking past nested lists.
func (it *item) normalize() {
	for i := len(it.items) - 1; i >= 0; i-- {
		last := it.items[i]
		if last.isNull() {
			it.items = append(it.items[:i], it.items[i+1:]...)
		} else if last.kind != listItem {
			break
		}
	}
}

// compare orders it against other; a nil other stands for a missing item.
func (it *item) compare(other *item) int {
	switch it.kind {
	case numberItem:
		if other == nil {
			if it.value == "0" {
				return 0
			}
			return 1
		}
		if other.kind == numberItem {
			return compareDigits(it.value, other.value)
		}
		return 1
	case qualifierItem:
		if other == nil {
			return compareInts(qualifierIndex(it.value), releaseIndex)
		}
		if other.kind == qualifierItem {
			return compareQualifiers(it.value, other.value)
		}
		return -1
	default:
		if other == nil {
			for _, child := range it.items {
				if c := child.compare(nil); c != 0 {
					return c
				}
			}
			return 0
		}
		switch other.kind {
		case numberItem:
			return -1
		case qualifierItem:
			return 1
		}
		for i := 0; i < len(it.items) || i < len(other.items); i++ {
			var l, r *item
			if i < len(it.items) {
				l = it.items[i]
			}
			if i < len(other.items) {
				r = other.items[i]
			}
			var c int
			switch {
			case l == nil && r == nil:
				c = 0
			case l == nil:
				c = -r.compare(nil)
			default:
				c = l.compare(r)
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}
}

func (it *item) String() string {
	switch it.kind {
	case numberItem, qualifierItem:
		return it.value
	}
	var b strings.Builder
	for _, child := range it.items {
		if b.Len() > 0 {
			if child.kind == listItem {
				b.WriteByte('-')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString(child.String())
	}
	return b.String()
}

func compareDigits(a, b string) int {
	if len(a) != len(b) {
		return compareInts(len(a), len(b))
	}
	return strings.Compare(a, b)
}

func compareQualifiers(a, b string) int {
	ia, ib := qualifierIndex(a), qualifierIndex(b)
	if ia == len(qualifiers) && ib == len(qualifiers) {
		return strings.Compare(a, b)
	}
	return compareInts(ia, ib)
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func parseToken(digit bool, s string) *item {
	if digit {
		return newNumber(s)
	}
	return newQualifier(s, false)
}

// parseItems splits a version string into its item tree.
func parseItems(raw string) *item {
	s := strings.ToLower(raw)
	root := &item{kind: listItem}
	list := root
	stack := []*item{root}
	push := func() {
		next := &item{kind: listItem}
		list.add(next)
		list = next
		stack = append(stack, next)
	}

	digit := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.' || c == '-' || c == '+':
			if i == start {
				list.add(newNumber("0"))
			} else {
				list.add(parseToken(digit, s[start:i]))
			}
			start = i + 1
			if c != '.' || !digit {
				push()
			}
		case isDigit(c):
			if !digit && i > start {
				// ".RC1" is read as "-RC-1".
				if len(list.items) > 0 {
					push()
				}
				list.add(newQualifier(s[start:i], true))
				start = i
				push()
			}
			digit = true
		default:
			if digit && i > start {
				list.add(newNumber(s[start:i]))
				start = i
				push()
			}
			digit = false
		}
	}
	if len(s) > start {
		if !digit && len(list.items) > 0 {
			push()
		}
		list.add(parseToken(digit, s[start:]))
	}

	for i := len(stack) - 1; i >= 0; i-- {
		stack[i].normalize()
	}
	return root
}
