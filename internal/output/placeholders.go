package output

import (
	"fmt"
	"strings"

	domainerrors "wrapgen/internal/core/errors"
)

// renderPlaceholders expands a {name} template. Doubled braces produce a
// literal brace. The first unknown name aborts with a TemplateError.
func renderPlaceholders(tmpl string, values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", placeholderError(tmpl, i, "", "unterminated placeholder")
			}
			name := strings.TrimSpace(tmpl[i+1 : i+1+end])
			value, ok := values[name]
			if !ok {
				return "", placeholderError(tmpl, i, name, "no value for placeholder")
			}
			b.WriteString(value)
			i += end + 1
		case c == '}':
			return "", placeholderError(tmpl, i, "}", "single '}' in template")
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func placeholderError(tmpl string, offset int, name, msg string) error {
	line := strings.Count(tmpl[:offset], "\n") + 1
	e := domainerrors.NewTemplateError("", name, fmt.Errorf("%s at line %d", msg, line))
	e.WithContext(domainerrors.CtxLine, line)
	return e
}
