// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trace implements the trace emitter and final pass (components I
// and J, spec.md §4.8): the declarations and values text records of §6.
package trace

import "strings"

// EscapeName applies spec.md §6's variable-name escaping: a leading "/"
// marking a global becomes "::", spaces become "\_", backslashes double,
// and the first "[]" becomes "[..]" (later ones are left alone because
// only one level of sequence is supported).
func EscapeName(name string) string {
	if strings.HasPrefix(name, "/") {
		name = "::" + name[1:]
	}
	name = strings.ReplaceAll(name, `\`, `\\`)
	name = strings.ReplaceAll(name, " ", `\_`)
	if idx := strings.Index(name, "[]"); idx >= 0 {
		name = name[:idx] + "[..]" + name[idx+2:]
	}
	return name
}

// EscapeDeclType applies the same escaping rules to a declared-type string
// (spec.md §6: "Declared-type strings have the same escaping applied").
func EscapeDeclType(decl string) string { return EscapeName(decl) }

// EscapeStringLiteral applies the values-file string-literal escapes:
// \n, \r, \", \\.
func EscapeStringLiteral(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
