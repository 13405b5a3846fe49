package edgar

import (
	"bytes"
	"strings"
)

// sanitizeXML repairs the malformations that show up in older or hand-built
// Form 4 documents before the strict decoder sees them: bare ampersands
// (company names like "Smith & Co" filed unescaped) and stray control
// characters. Well-formed documents pass through unchanged.
func sanitizeXML(doc []byte) []byte {
	doc = stripControlChars(doc)
	return escapeBareAmpersands(doc)
}

func stripControlChars(doc []byte) []byte {
	return bytes.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, doc)
}

// escapeBareAmpersands rewrites any '&' that does not start a recognizable
// entity reference as '&amp;'.
func escapeBareAmpersands(doc []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(doc))

	for i := 0; i < len(doc); i++ {
		c := doc[i]
		if c != '&' {
			out.WriteByte(c)
			continue
		}
		if isEntityStart(doc[i:]) {
			out.WriteByte(c)
			continue
		}
		out.WriteString("&amp;")
	}
	return out.Bytes()
}

// isEntityStart reports whether the slice begins with an entity reference
// such as &amp; &#38; or &#x26;.
func isEntityStart(s []byte) bool {
	// s[0] is '&'. An entity name is short; scan at most a handful of bytes
	// for the terminating semicolon.
	const maxEntityLen = 10
	end := len(s)
	if end > maxEntityLen {
		end = maxEntityLen
	}
	semicolon := bytes.IndexByte(s[1:end], ';')
	if semicolon < 0 {
		return false
	}
	body := string(s[1 : 1+semicolon])
	if body == "" {
		return false
	}
	if body[0] == '#' {
		ref := body[1:]
		if ref == "" {
			return false
		}
		if ref[0] == 'x' || ref[0] == 'X' {
			ref = ref[1:]
			if ref == "" {
				return false
			}
			return strings.IndexFunc(ref, func(r rune) bool { return !isHexDigit(r) }) < 0
		}
		return strings.IndexFunc(ref, func(r rune) bool { return r < '0' || r > '9' }) < 0
	}
	return strings.IndexFunc(body, func(r rune) bool { return !isAlphaNum(r) }) < 0
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isAlphaNum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
