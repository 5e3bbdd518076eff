package vm

import (
	"strconv"
	"strings"

	"mainstage/internal/ir"
)

// builtinFmt implements the `fmt` host builtin's brace-placeholder
// template language: `{}` stringifies the next argument plain; `{:spec}`
// applies a `[fill][<>^]width[.precision]` format spec to it. "{{" and
// "}}" escape to literal braces. Placeholders consume arguments in
// order; once args run out, a placeholder reuses the last supplied
// argument, falling back to Null only when no args were given at all.
func builtinFmt(args []ir.Value) (ir.Value, error) {
	if len(args) == 0 || args[0].Kind != ir.VStr {
		return ir.Str(""), &RuntimeError{Op: "fmt", Msg: "expected a template string"}
	}
	template := args[0].S
	rest := args[1:]

	var out strings.Builder
	argIdx := 0
	i := 0
	for i < len(template) {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			out.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			out.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				out.WriteString(template[i:])
				i = len(template)
				continue
			}
			spec := template[i+1 : i+end]
			var arg ir.Value
			if argIdx < len(rest) {
				arg = rest[argIdx]
			} else if len(rest) > 0 {
				arg = rest[len(rest)-1]
			} else {
				arg = ir.Null()
			}
			argIdx++
			out.WriteString(applyFmtSpec(spec, arg))
			i += end + 1
		default:
			out.WriteByte(c)
			i++
		}
	}
	return ir.Str(out.String()), nil
}

type fmtSpec struct {
	fill      byte
	align     byte // '<', '>', '^', or 0 for none
	width     int
	precision int
	hasPrec   bool
}

func parseFmtSpec(spec string) fmtSpec {
	s := fmtSpec{fill: ' '}
	if spec == "" || spec[0] != ':' {
		return s
	}
	spec = spec[1:]

	if len(spec) >= 2 && isAlignChar(spec[1]) {
		s.fill = spec[0]
		s.align = spec[1]
		spec = spec[2:]
	} else if len(spec) >= 1 && isAlignChar(spec[0]) {
		s.align = spec[0]
		spec = spec[1:]
	}

	dot := strings.IndexByte(spec, '.')
	widthPart := spec
	if dot >= 0 {
		widthPart = spec[:dot]
		if n, err := strconv.Atoi(spec[dot+1:]); err == nil {
			s.precision = n
			s.hasPrec = true
		}
	}
	if n, err := strconv.Atoi(widthPart); err == nil {
		s.width = n
	}
	return s
}

func isAlignChar(c byte) bool { return c == '<' || c == '>' || c == '^' }

func applyFmtSpec(spec string, v ir.Value) string {
	ps := parseFmtSpec(spec)

	var rendered string
	if ps.hasPrec && (v.Kind == ir.VInt || v.Kind == ir.VFloat) {
		f, _ := v.ToNumber()
		rendered = strconv.FormatFloat(f, 'f', ps.precision, 64)
	} else {
		rendered = v.ToString()
	}

	if ps.width <= len(rendered) {
		return rendered
	}
	pad := ps.width - len(rendered)
	fill := ps.fill
	if fill == 0 {
		fill = ' '
	}
	switch ps.align {
	case '<':
		return rendered + strings.Repeat(string(fill), pad)
	case '^':
		left := pad / 2
		right := pad - left
		return strings.Repeat(string(fill), left) + rendered + strings.Repeat(string(fill), right)
	default: // '>' or unspecified: right-align
		return strings.Repeat(string(fill), pad) + rendered
	}
}
