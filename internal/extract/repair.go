package extract

// Repair fixes the defects LLMs commonly emit: an odd number of quotes, trailing
// commas, and missing commas between adjacent values. It never touches string
// contents once quotes are balanced.
func Repair(s string) string {
	return fixSeparators(balanceQuotes(s))
}

// balanceQuotes drops the last unescaped quote when the count is odd.
func balanceQuotes(s string) string {
	last, count := -1, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			last = i
			count++
		}
	}
	if count%2 == 0 {
		return s
	}
	return s[:last] + s[last+1:]
}

const (
	expectKey = iota // object key, or array element
	expectColon
	expectValue
	expectComma
)

type frame struct {
	object bool
	state  int
	comma  int // offset in the output of a comma not yet followed by a value
}

func fixSeparators(s string) string {
	out := make([]byte, 0, len(s)+8)
	var stack []frame
	top := func() *frame {
		if len(stack) == 0 {
			return nil
		}
		return &stack[len(stack)-1]
	}
	beforeValue := func() {
		f := top()
		if f == nil {
			return
		}
		switch f.state {
		case expectComma:
			out = append(out, ',')
			f.state = expectKey
		case expectColon:
			out = append(out, ':')
			f.state = expectValue
		}
		f.comma = -1
	}
	afterValue := func() {
		f := top()
		if f == nil {
			return
		}
		if f.object && f.state == expectKey {
			f.state = expectColon
			return
		}
		f.state = expectComma
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			j := scanString(s, i)
			beforeValue()
			out = append(out, s[i:j]...)
			afterValue()
			i = j - 1
		case c == '{' || c == '[':
			beforeValue()
			out = append(out, c)
			stack = append(stack, frame{object: c == '{', state: expectKey, comma: -1})
		case c == '}' || c == ']':
			if f := top(); f != nil {
				if f.comma >= 0 {
					out = append(out[:f.comma], out[f.comma+1:]...)
				}
				stack = stack[:len(stack)-1]
			}
			out = append(out, c)
			afterValue()
		case c == ',':
			f := top()
			switch {
			case f == nil:
				out = append(out, c)
			case f.state == expectComma:
				f.comma = len(out)
				f.state = expectKey
				out = append(out, c)
			}
			// any other comma is a duplicate and is dropped
		case c == ':':
			if f := top(); f != nil && f.object && f.state == expectColon {
				f.state = expectValue
			}
			out = append(out, c)
		case isSpace(c):
			out = append(out, c)
		default:
			j := i
			for j < len(s) && !isDelim(s[j]) {
				j++
			}
			beforeValue()
			out = append(out, s[i:j]...)
			afterValue()
			i = j - 1
		}
	}
	// close anything a truncated response left open
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.comma >= 0 {
			out = append(out[:f.comma], out[f.comma+1:]...)
		}
		stack = stack[:len(stack)-1]
		if f.object {
			out = append(out, '}')
		} else {
			out = append(out, ']')
		}
	}
	return string(out)
}

// scanString returns the offset just past the string literal starting at i.
func scanString(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j + 1
		}
	}
	return len(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelim(c byte) bool {
	switch c {
	case ',', ':', '[', ']', '{', '}', '"':
		return true
	}
	return isSpace(c)
}
