// Copyright © 2024 The ELPS authors

package lsp

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// safeUint converts a non-negative int to protocol.UInteger, clamping
// negative values to zero.
func safeUint(n int) protocol.UInteger {
	if n < 0 {
		return 0
	}
	return protocol.UInteger(n) // #nosec G115 -- line/col are always small positive ints
}

// lspRange converts a 1-based line and column spanning n bytes to an LSP
// range. Zero line or column clamp to the start of the document or line.
func lspRange(line, col, n int) protocol.Range {
	if line > 0 {
		line--
	}
	if col > 0 {
		col--
	}
	start := protocol.Position{Line: safeUint(line), Character: safeUint(col)}
	return protocol.Range{
		Start: start,
		End:   protocol.Position{Line: start.Line, Character: start.Character + safeUint(n)},
	}
}

// wordAtPosition extracts the identifier or directive name at the given
// 0-based LSP position. The cursor can be inside or at the end of a word;
// in both cases the full word is returned.
func wordAtPosition(content string, line, col int) string {
	start, end := wordBounds(content, line, col)
	if start < 0 {
		return ""
	}
	return strings.Split(content, "\n")[line][start:end]
}

// prefixAtPosition returns the part of the word at the position that lies
// before the cursor.
func prefixAtPosition(content string, line, col int) string {
	start, _ := wordBounds(content, line, col)
	if start < 0 {
		return ""
	}
	ln := strings.Split(content, "\n")[line]
	return ln[start:min(col, len(ln))]
}

func wordBounds(content string, line, col int) (int, int) {
	lines := strings.Split(content, "\n")
	if line < 0 || line >= len(lines) {
		return -1, -1
	}
	ln := lines[line]
	if col < 0 || col > len(ln) {
		return -1, -1
	}
	if col < len(ln) && ln[col] == '@' {
		col++
	}
	// Scan backwards from cursor.
	start := col
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(ln[:start])
		if !isWordRune(r) {
			break
		}
		start -= size
	}
	if start > 0 && ln[start-1] == '@' {
		start--
	}
	// Scan forwards from cursor.
	end := col
	for end < len(ln) {
		r, size := utf8.DecodeRuneInString(ln[end:])
		if !isWordRune(r) {
			break
		}
		end += size
	}
	return start, end
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// uriToPath converts a file:// URI to a filesystem path.
func uriToPath(uri string) string {
	if p, ok := strings.CutPrefix(uri, "file://"); ok {
		return p
	}
	return uri
}

// pathToURI converts a filesystem path to a file:// URI.
func pathToURI(p string) string {
	if strings.HasPrefix(p, "/") {
		return "file://" + p
	}
	return p
}

// documentFile returns the name under which a document is preprocessed.
func documentFile(uri string) string {
	return path.Base(uriToPath(uri))
}

// documentDir returns the directory holding a file:// document, or "".
func documentDir(uri string) string {
	p, ok := strings.CutPrefix(uri, "file://")
	if !ok {
		return ""
	}
	return path.Dir(p)
}
