package weather

import "strings"

// extractField returns the text between the end of tag and the next '<',
// scanning buf from *cursor onward. This is deliberately not an XML parser:
// the AWC response shape is narrow and fixed, so a single-pass substring
// scan is enough. No nesting, attributes or escaping are understood.
//
// If tag is not found, the cursor is left alone and "" is returned; callers
// must treat "" as "not present", never as an empty value. If tag is found
// but the buffer ends before the next '<' (truncated response), the cursor
// is reset to the start of the buffer so that a later lookup for an
// unrelated tag isn't trapped at end-of-buffer.
//
// On success the cursor lands on the '<' of the closing tag, so consecutive
// calls walk the buffer in document order without re-scanning from 0.
func extractField(buf, tag string, cursor *int) string {
	if *cursor < 0 || *cursor > len(buf) {
		return ""
	}

	p := strings.Index(buf[*cursor:], tag)
	if p < 0 {
		return ""
	}

	start := *cursor + p + len(tag)
	end := strings.IndexByte(buf[start:], '<')
	if end < 0 {
		*cursor = 0
		return ""
	}

	*cursor = start + end
	return buf[start : start+end]
}
