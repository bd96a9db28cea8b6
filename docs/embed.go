// Copyright © 2024 The ELPS authors

// Package docs embeds the pyplus directive reference for use by the CLI.
package docs

import (
	_ "embed"
	"strings"
)

//go:embed directives.md
var Guide string

// Section returns the body of the guide section titled heading, without
// the heading line. It returns "" when the guide has no such section.
func Section(heading string) string {
	var body []string
	in := false
	for _, line := range strings.Split(Guide, "\n") {
		if title, ok := strings.CutPrefix(line, "## "); ok {
			if in {
				break
			}
			in = strings.TrimSpace(title) == heading
			continue
		}
		if in {
			body = append(body, line)
		}
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}
