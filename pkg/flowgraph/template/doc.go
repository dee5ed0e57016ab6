/*
Package template renders prompt text with ${name} placeholders.

Prompts are parsed once, usually at package level, and rendered per call:

	var classify = template.MustParse("classify", "Query: ${query}\nIntent:")

	prompt, err := classify.Render(map[string]string{"query": q})

Render is strict: every referenced variable must be supplied, and values
are inserted literally without further expansion. Expand is the lenient
form for free text and keeps unknown placeholders as written.
*/
package template
