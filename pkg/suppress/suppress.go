// Package suppress implements comment-based suppression of checker findings.
package suppress

import (
	"fmt"
	"go/ast"
	"go/token"
	"regexp"
	"strings"
)

// Linter is the name used in suppression directives.
const Linter = "diagswitch"

// Checker handles nolint and lint:ignore comment suppression.
// A directive suppresses findings on its own line. A directive alone on its
// line also suppresses the line after it.
type Checker struct {
	// suppressions maps file:line to suppression reason
	suppressions map[lineKey]string
}

type lineKey struct {
	file string
	line int
}

var (
	// nolintPattern matches //nolint:diagswitch comments
	nolintPattern = regexp.MustCompile(`//\s*nolint:diagswitch(?:\s+//\s*(.+))?$`)

	// lintIgnorePattern matches //lint:ignore diagswitch comments
	lintIgnorePattern = regexp.MustCompile(`//\s*lint:ignore\s+diagswitch(?:\s+(.+))?`)

	// genericNolintPattern matches //nolint comments without specific linter
	genericNolintPattern = regexp.MustCompile(`//\s*nolint(?:\s|$)`)

	// nolintWithMultipleRules matches nolint with multiple comma-separated rules
	nolintWithMultipleRules = regexp.MustCompile(`//\s*nolint:([^/\s]+)`)
)

// NewChecker creates a new suppression checker.
func NewChecker() *Checker {
	return &Checker{
		suppressions: make(map[lineKey]string),
	}
}

// Load parses suppression comments from AST files.
func (sc *Checker) Load(fset *token.FileSet, files []*ast.File) error {
	if fset == nil {
		return fmt.Errorf("fset cannot be nil")
	}
	for _, file := range files {
		if file == nil || len(file.Comments) == 0 {
			continue
		}
		code := codeColumns(fset, file)
		for _, commentGroup := range file.Comments {
			for _, comment := range commentGroup.List {
				reason, ok := parseComment(comment.Text)
				if !ok {
					continue
				}
				if reason == "" {
					reason = "suppressed"
				}
				pos := fset.Position(comment.Pos())
				sc.suppressions[lineKey{pos.Filename, pos.Line}] = reason

				if col, hasCode := code[pos.Line]; hasCode && col < pos.Column {
					continue // trailing directive
				}
				next := lineKey{pos.Filename, pos.Line + 1}
				if _, exists := sc.suppressions[next]; !exists {
					sc.suppressions[next] = reason
				}
			}
		}
	}
	return nil
}

// codeColumns returns, per line, the leftmost column at which a
// non-comment node starts or ends.
func codeColumns(fset *token.FileSet, file *ast.File) map[int]int {
	cols := make(map[int]int)
	mark := func(p token.Pos) {
		if !p.IsValid() {
			return
		}
		pos := fset.Position(p)
		if c, ok := cols[pos.Line]; !ok || pos.Column < c {
			cols[pos.Line] = pos.Column
		}
	}
	ast.Inspect(file, func(n ast.Node) bool {
		switch n.(type) {
		case nil, *ast.CommentGroup, *ast.Comment:
			return false
		}
		mark(n.Pos())
		if end := n.End(); end.IsValid() {
			mark(end - 1)
		}
		return true
	})
	return cols
}

// parseComment reports whether text is a suppression directive and
// returns its reason, if any.
func parseComment(text string) (string, bool) {
	if matches := nolintPattern.FindStringSubmatch(text); matches != nil {
		return strings.TrimSpace(matches[1]), true
	}

	if matches := lintIgnorePattern.FindStringSubmatch(text); matches != nil {
		return strings.TrimSpace(matches[1]), true
	}

	if genericNolintPattern.MatchString(text) {
		return "", true
	}

	if matches := nolintWithMultipleRules.FindStringSubmatch(text); len(matches) > 1 {
		for rule := range strings.SplitSeq(matches[1], ",") {
			if strings.TrimSpace(rule) != Linter {
				continue
			}
			// Extract reason from a trailing "// reason".
			if after, ok := strings.CutPrefix(strings.TrimSpace(text), "//"); ok {
				if idx := strings.Index(after, "//"); idx >= 0 {
					return strings.TrimSpace(after[idx+2:]), true
				}
			}
			return "", true
		}
	}

	return "", false
}

// IsSuppressed checks if a finding at the given position is suppressed.
func (sc *Checker) IsSuppressed(pos token.Position) (bool, string) {
	if reason, exists := sc.suppressions[lineKey{pos.Filename, pos.Line}]; exists {
		return true, reason
	}
	return false, ""
}

// Len returns the number of suppressed lines.
func (sc *Checker) Len() int { return len(sc.suppressions) }
