package channel

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/serializetype"
)

// Printf writes one value per conversion directive in format, analogous to
// the printf-macro family the original IOChannel exposed (DESIGN NOTES §9,
// "From printf-macro family to a typed I/O layer"). The supported
// directives are %c %u %d %f %p %s %S %hd %hu %ld %lu %lld %llu %Lf %lf
// %qc %qs %*qs %*s %@; literal text in format (including %%) is copied
// through unchanged. len(values) must equal the number of consuming
// directives in format.
func (c *Channel) Printf(format string, values []serializetype.ValueRef) error {
	var buf strings.Builder
	vi := 0
	next := func() (serializetype.ValueRef, error) {
		if vi >= len(values) {
			return serializetype.ValueRef{}, errors.E(errors.BadPrintfCallback, "not enough values for format string")
		}
		v := values[vi]
		vi++
		return v, nil
	}

	i := 0
	for i < len(format) {
		ch := format[i]
		if ch != '%' {
			buf.WriteByte(ch)
			i++
			continue
		}
		directive, width, err := scanDirective(format, i)
		if err != nil {
			return c.fail(err)
		}
		if directive == "%%" {
			buf.WriteByte('%')
			i += len(directive)
			continue
		}
		if directive == "%@" {
			// %@ is a no-op separator directive (kept for symmetry with the
			// original conversion set); it consumes no value.
			i += len(directive)
			continue
		}
		v, err := next()
		if err != nil {
			return c.fail(err)
		}
		s, err := formatValue(directive, v)
		if err != nil {
			return c.fail(err)
		}
		if width > 0 {
			s = padLeft(s, width)
		}
		buf.WriteString(s)
		i += len(directive)
	}
	if vi != len(values) {
		return c.fail(errors.E(errors.BadPrintfCallback, "too many values for format string"))
	}
	_, err := c.Write([]byte(buf.String()))
	return err
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// scanDirective parses the conversion directive beginning at format[i] (which
// must be '%') and returns its literal text, an optional field width (0 if
// none given), and advances past it.
func scanDirective(format string, i int) (directive string, width int, err error) {
	start := i
	i++ // skip '%'
	if i < len(format) && format[i] == '%' {
		return "%%", 0, nil
	}
	widthStart := i
	for i < len(format) && unicode.IsDigit(rune(format[i])) {
		i++
	}
	if i > widthStart {
		width, _ = strconv.Atoi(format[widthStart:i])
	}
	// optional '*' (accepted in %*qs / %*s and otherwise ignored)
	if i < len(format) && format[i] == '*' {
		i++
	}
	// length modifiers: h, l, ll, L, q
	for i < len(format) {
		switch format[i] {
		case 'h', 'l', 'L', 'q':
			i++
			continue
		}
		break
	}
	if i >= len(format) {
		return "", 0, errors.E(errors.BadPrintfCallback, "truncated conversion directive: "+format[start:])
	}
	switch format[i] {
	case '@':
		return "%@", 0, nil
	case 'c', 'u', 'd', 'f', 'p', 's', 'S':
		return format[start : i+1], width, nil
	default:
		return "", 0, errors.E(errors.BadPrintfCallback, "unknown conversion directive: "+format[start:i+1])
	}
}

func formatValue(directive string, v serializetype.ValueRef) (string, error) {
	switch {
	case strings.HasSuffix(directive, "c"):
		return string(rune(v.Int64Value())), nil
	case strings.HasSuffix(directive, "u"):
		return strconv.FormatUint(v.Uint64Value(), 10), nil
	case strings.HasSuffix(directive, "d"):
		return strconv.FormatInt(v.Int64Value(), 10), nil
	case strings.HasSuffix(directive, "f"):
		return strconv.FormatFloat(v.Float64Value(), 'f', -1, 64), nil
	case strings.HasSuffix(directive, "p"):
		if v.Type != serializetype.Uint64 {
			return "", errors.E(errors.BadPrintfCallback, "%p requires a Uint64 ValueRef")
		}
		return fmt.Sprintf("0x%x", *v.U64), nil
	case strings.Contains(directive, "qs"), strings.HasSuffix(directive, "s"), strings.HasSuffix(directive, "S"):
		if v.Type != serializetype.String || v.Str == nil {
			return "", errors.E(errors.BadPrintfCallback, directive+" requires a String ValueRef")
		}
		if strings.Contains(directive, "q") {
			return strconv.Quote(*v.Str), nil
		}
		return *v.Str, nil
	default:
		return "", errors.E(errors.BadPrintfCallback, "unhandled conversion directive: "+directive)
	}
}

// Scanf reads one value per consuming directive in format, the mirror image
// of Printf. Literal bytes in format (other than whitespace) must match the
// channel's next bytes exactly; a literal space in format skips any amount
// of whitespace (including none) in the input, matching the original
// scanf-macro family's behavior of collapsing run-length-independent
// whitespace. On a mismatch the byte that failed to match (a literal, or the
// byte that ended a number) is pushed back onto the channel's unget buffer
// before the error is returned; bytes already consumed by a conversion that
// then fails to parse are not pushed back.
func (c *Channel) Scanf(format string, values []serializetype.ValueRef) (int, error) {
	vi := 0
	consumed := 0
	next := func() (serializetype.ValueRef, error) {
		if vi >= len(values) {
			return serializetype.ValueRef{}, errors.E(errors.BadScanfCallback, "not enough destinations for format string")
		}
		v := values[vi]
		vi++
		return v, nil
	}

	i := 0
	for i < len(format) {
		ch := format[i]
		if ch == ' ' || ch == '\t' || ch == '\n' {
			if err := c.skipWhitespace(); err != nil {
				return vi, c.fail(err)
			}
			i++
			continue
		}
		if ch != '%' {
			b, err := c.readByte()
			if err != nil {
				return vi, c.fail(err)
			}
			if b != ch {
				c.UngetByte(b)
				return vi, c.fail(errors.E(errors.IncorrectFormat, fmt.Sprintf("scanf: expected literal %q, got %q", ch, b)))
			}
			i++
			continue
		}
		directive, _, err := scanDirective(format, i)
		if err != nil {
			return vi, c.fail(err)
		}
		if directive == "%%" {
			b, err := c.readByte()
			if err != nil {
				return vi, c.fail(err)
			}
			if b != '%' {
				c.UngetByte(b)
				return vi, c.fail(errors.E(errors.IncorrectFormat, "scanf: expected literal '%'"))
			}
			i += len(directive)
			continue
		}
		if directive == "%@" {
			i += len(directive)
			continue
		}
		v, err := next()
		if err != nil {
			return vi, c.fail(err)
		}
		n, err := c.scanValue(directive, v)
		if err != nil {
			return vi, c.fail(err)
		}
		consumed += n
		i += len(directive)
	}
	return vi, nil
}

func (c *Channel) readByte() (byte, error) {
	var buf [1]byte
	_, err := c.Read(buf[:])
	return buf[0], err
}

// skipWhitespace consumes whitespace bytes, ungetting the first non-
// whitespace byte it finds (if any) so later directives can still see it.
func (c *Channel) skipWhitespace() error {
	for {
		b, err := c.readByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if b != ' ' && b != '\t' && b != '\n' && b != '\r' {
			return c.UngetByte(b)
		}
	}
}

func (c *Channel) scanValue(directive string, v serializetype.ValueRef) (int, error) {
	switch {
	case strings.Contains(directive, "qs"), strings.HasSuffix(directive, "s"), strings.HasSuffix(directive, "S"):
		return c.scanString(directive, v)
	case strings.HasSuffix(directive, "c"):
		b, err := c.readByte()
		if err != nil {
			return 0, err
		}
		v.SetInt64(int64(b))
		return 1, nil
	default:
		return c.scanNumber(directive, v)
	}
}

func (c *Channel) scanString(directive string, v serializetype.ValueRef) (int, error) {
	if v.Type != serializetype.String || v.Str == nil {
		return 0, errors.E(errors.BadScanfCallback, directive+" requires a String ValueRef")
	}
	if strings.Contains(directive, "q") {
		return c.scanQuotedString(v)
	}
	var buf []byte
	for {
		b, err := c.readByte()
		if err != nil {
			break
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			c.UngetByte(b)
			break
		}
		buf = append(buf, b)
	}
	*v.Str = string(buf)
	return len(buf), nil
}

func (c *Channel) scanQuotedString(v serializetype.ValueRef) (int, error) {
	b, err := c.readByte()
	if err != nil {
		return 0, err
	}
	if b != '"' {
		c.UngetByte(b)
		return 0, errors.E(errors.IncorrectFormat, "scanf: expected opening quote")
	}
	var buf []byte
	n := 1
	for {
		b, err := c.readByte()
		if err != nil {
			return n, err
		}
		n++
		if b == '\\' {
			esc, err := c.readByte()
			if err != nil {
				return n, err
			}
			n++
			buf = append(buf, esc)
			continue
		}
		if b == '"' {
			break
		}
		buf = append(buf, b)
	}
	*v.Str = string(buf)
	return n, nil
}

func (c *Channel) scanNumber(directive string, v serializetype.ValueRef) (int, error) {
	var buf []byte
	for {
		b, err := c.readByte()
		if err != nil {
			if len(buf) > 0 {
				break
			}
			return 0, err
		}
		if isNumberByte(b, len(buf)) {
			buf = append(buf, b)
			continue
		}
		c.UngetByte(b)
		break
	}
	if len(buf) == 0 {
		return 0, errors.E(errors.IncorrectFormat, "scanf: no digits found for "+directive)
	}
	s := string(buf)
	switch {
	case strings.HasSuffix(directive, "u"):
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return len(buf), errors.E(errors.IncorrectFormat, "scanf: invalid unsigned integer", err)
		}
		v.SetUint64(n)
	case strings.HasSuffix(directive, "d"):
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return len(buf), errors.E(errors.IncorrectFormat, "scanf: invalid integer", err)
		}
		v.SetInt64(n)
	case strings.HasSuffix(directive, "f"):
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return len(buf), errors.E(errors.IncorrectFormat, "scanf: invalid float", err)
		}
		v.SetFloat64(f)
	case strings.HasSuffix(directive, "p"):
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
		if err != nil {
			return len(buf), errors.E(errors.IncorrectFormat, "scanf: invalid pointer literal", err)
		}
		v.SetUint64(n)
	default:
		return len(buf), errors.E(errors.BadScanfCallback, "unhandled numeric directive: "+directive)
	}
	return len(buf), nil
}

func isNumberByte(b byte, pos int) bool {
	if b >= '0' && b <= '9' {
		return true
	}
	if pos == 0 && (b == '-' || b == '+') {
		return true
	}
	if b == '.' || b == 'e' || b == 'E' || b == 'x' {
		return true
	}
	if pos > 0 && (b == '-' || b == '+') {
		return true // exponent sign, e.g. "1e-9"
	}
	return false
}
