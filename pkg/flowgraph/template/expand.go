package template

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholder matches ${name}; names are identifiers.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Template is a parsed text with ${name} placeholders.
// It is immutable and safe for concurrent use.
type Template struct {
	name string
	text string
	vars []string
}

// Parse checks text for malformed placeholders and records the variables
// it references. Every "${" must open a well-formed ${name}.
func Parse(name, text string) (*Template, error) {
	valid := placeholder.FindAllStringIndex(text, -1)
	starts := make(map[int]bool, len(valid))
	for _, loc := range valid {
		starts[loc[0]] = true
	}
	for offset := 0; ; {
		i := strings.Index(text[offset:], "${")
		if i < 0 {
			break
		}
		pos := offset + i
		if !starts[pos] {
			return nil, &SyntaxError{Template: name, Offset: pos}
		}
		offset = pos + 2
	}

	var vars []string
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			vars = append(vars, m[1])
		}
	}
	return &Template{name: name, text: text, vars: vars}, nil
}

// MustParse is Parse for package-level prompt definitions.
func MustParse(name, text string) *Template {
	t, err := Parse(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// Vars returns the referenced variable names in order of first use.
func (t *Template) Vars() []string {
	return append([]string(nil), t.vars...)
}

// Render substitutes every placeholder. All referenced variables must be
// present. Substituted values are not re-scanned, so a value containing
// "${x}" is inserted literally.
func (t *Template) Render(vars map[string]string) (string, error) {
	var missing []string
	for _, name := range t.vars {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", &UndefinedVariableError{Template: t.name, Names: missing}
	}
	return placeholder.ReplaceAllStringFunc(t.text, func(match string) string {
		return vars[match[2:len(match)-1]]
	}), nil
}

// Expand substitutes ${name} placeholders found in vars and leaves the
// rest untouched. Use it for free-form text where missing values are fine.
func Expand(s string, vars map[string]any) string {
	if s == "" {
		return ""
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := vars[match[2:len(match)-1]]; ok {
			return fmt.Sprint(val)
		}
		return match
	})
}

// SyntaxError reports a "${" that does not start a valid placeholder.
type SyntaxError struct {
	Template string
	Offset   int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template %s: malformed placeholder at offset %d", e.Template, e.Offset)
}

// UndefinedVariableError is returned by Render when variables are missing.
type UndefinedVariableError struct {
	Template string
	Names    []string
}

func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("template %s: undefined variable: %s", e.Template, e.Names[0])
	}
	return fmt.Sprintf("template %s: undefined variables: %s", e.Template, strings.Join(e.Names, ", "))
}
