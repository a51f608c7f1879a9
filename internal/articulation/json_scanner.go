package articulation

// scanObjects returns every balanced top-level {...} span in s, in order of
// appearance. Braces inside JSON strings are ignored. An unterminated object
// at the end of s is dropped.
//
// Byte iteration is safe for the ASCII delimiters involved because UTF-8
// never reuses ASCII bytes inside multi-byte sequences.
func scanObjects(s string) []string {
	var (
		spans    []string
		depth    int
		start    = -1
		inString bool
		escape   bool
	)

	for i := 0; i < len(s); i++ {
		b := s[i]

		if inString {
			switch {
			case escape:
				escape = false
			case b == '\\':
				escape = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			// Quotes only matter once an object has opened; prose around
			// the payload may contain unbalanced quotes.
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				spans = append(spans, s[start:i+1])
				start = -1
			}
		}
	}

	return spans
}
