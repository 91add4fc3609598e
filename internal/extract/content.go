package extract

import "strings"

// showText appends the operands of text-showing operators (Tj, TJ, ' and ") found in a
// content stream. Line-moving operators start a new line.
func showText(b *strings.Builder, content []byte) {
	var pending []string
	flush := func() {
		for _, s := range pending {
			b.WriteString(s)
		}
		pending = pending[:0]
	}

	for i := 0; i < len(content); {
		c := content[i]
		switch {
		case c == '(':
			s, n := literal(content[i:])
			pending = append(pending, s)
			i += n
		case c == '[' || c == ']':
			i++
		case c == '%':
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case isSpace(c):
			i++
		default:
			j := i
			for j < len(content) && !isSpace(content[j]) && !isDelim(content[j]) {
				j++
			}
			if j == i {
				j++
			}
			switch op := string(content[i:j]); op {
			case "Tj", "TJ":
				flush()
			case "'", "\"":
				b.WriteByte('\n')
				flush()
			case "T*", "Td", "TD", "ET":
				b.WriteByte('\n')
				pending = pending[:0]
			case "Tm":
				b.WriteByte(' ')
				pending = pending[:0]
			default:
				if !isOperand(op) {
					pending = pending[:0]
				}
			}
			i = j
		}
	}
}

// literal decodes a PDF literal string starting at '(' and returns it with the number
// of bytes consumed.
func literal(p []byte) (string, int) {
	var b strings.Builder
	depth := 0
	i := 0
	for i < len(p) {
		c := p[i]
		switch c {
		case '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
		case '\\':
			i++
			if i >= len(p) {
				return b.String(), i
			}
			i += escape(&b, p[i:]) - 1
		default:
			b.WriteByte(c)
		}
		i++
	}
	return b.String(), i
}

func escape(b *strings.Builder, p []byte) int {
	switch c := p[0]; c {
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'b', 'f':
	case '\r':
		if len(p) > 1 && p[1] == '\n' {
			return 2
		}
	case '\n':
	default:
		if c >= '0' && c <= '7' {
			v, n := 0, 0
			for n < 3 && n < len(p) && p[n] >= '0' && p[n] <= '7' {
				v = v*8 + int(p[n]-'0')
				n++
			}
			b.WriteByte(byte(v))
			return n
		}
		b.WriteByte(c)
	}
	return 1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

// isOperand reports whether a bare token is a number or a name, which may sit between
// a string and its operator inside TJ arrays.
func isOperand(tok string) bool {
	if tok == "" {
		return false
	}
	if tok[0] == '/' {
		return true
	}
	for _, r := range tok {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' {
			return false
		}
	}
	return true
}
