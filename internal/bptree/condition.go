package bptree

// Condition is one field's query predicate (§4.F.3). Any combination of
// its bounds may be set; Match requires a key to satisfy all of them.
type Condition struct {
	Equal    Key
	HasEqual bool

	NotEqual    Key
	HasNotEqual bool

	GT, GTE, LT, LTE             Key
	HasGT, HasGTE, HasLT, HasLTE bool

	Like    string
	HasLike bool
}

// EqualCondition builds the {equal: v} shorthand condition used for bare
// scalar query values (§4.F.3).
func EqualCondition(v Key) Condition {
	return Condition{Equal: v, HasEqual: true}
}

// Match reports whether key satisfies c.
func (c Condition) Match(key Key) bool {
	if c.HasEqual && !Equal(key, c.Equal) {
		return false
	}
	if c.HasNotEqual && Equal(key, c.NotEqual) {
		return false
	}
	if c.HasGT && Compare(key, c.GT) <= 0 {
		return false
	}
	if c.HasGTE && Compare(key, c.GTE) < 0 {
		return false
	}
	if c.HasLT && Compare(key, c.LT) >= 0 {
		return false
	}
	if c.HasLTE && Compare(key, c.LTE) > 0 {
		return false
	}
	if c.HasLike && !likeMatch(stringOf(key), c.Like) {
		return false
	}
	return true
}

// likeMatch implements the SQL-style `%`/`_` pattern of §4.F.6:
// % consumes any run of characters (including none), _ consumes exactly
// one, with no escape processing.
func likeMatch(s, pattern string) bool {
	if pattern == "" {
		return s == ""
	}
	switch pattern[0] {
	case '%':
		if likeMatch(s, pattern[1:]) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if likeMatch(s[i+1:], pattern[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatch(s[1:], pattern[1:])
	default:
		if len(s) == 0 || s[0] != pattern[0] {
			return false
		}
		return likeMatch(s[1:], pattern[1:])
	}
}
