package csharp

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	identifierRe = regexp.MustCompile(`[^A-Za-z0-9_]`)
	validIdentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

var keywords = map[string]bool{}

func init() {
	for _, k := range []string{
		"abstract", "as", "base", "bool", "break", "byte", "case", "catch", "char",
		"checked", "class", "const", "continue", "decimal", "default", "delegate", "do",
		"double", "else", "enum", "event", "explicit", "extern", "false", "finally",
		"fixed", "float", "for", "foreach", "goto", "if", "implicit", "in", "int",
		"interface", "internal", "is", "lock", "long", "namespace", "new", "null",
		"object", "operator", "out", "override", "params", "private", "protected",
		"public", "readonly", "ref", "return", "sbyte", "sealed", "short", "sizeof",
		"stackalloc", "static", "string", "struct", "switch", "this", "throw", "true",
		"try", "typeof", "uint", "ulong", "unchecked", "unsafe", "ushort", "using",
		"virtual", "void", "volatile", "while",
	} {
		keywords[k] = true
	}
}

// IsKeyword reports whether name is a reserved C# keyword.
func IsKeyword(name string) bool { return keywords[name] }

// IsIdentifier reports whether name is an ASCII C# identifier. Keywords
// pass; they need an '@' prefix to be used as names.
func IsIdentifier(name string) bool { return validIdentRe.MatchString(name) }

// Identifier turns name into a valid C# identifier. Keywords are escaped
// with '@' so the emitted name still matches the contract name.
func Identifier(name string) string {
	if name == "" {
		return "_"
	}
	if keywords[name] {
		return "@" + name
	}
	name = identifierRe.ReplaceAllString(name, "_")
	r, _ := utf8.DecodeRuneInString(name)
	if r != '_' && !unicode.IsLetter(r) {
		name = "_" + name
	}
	return name
}

// UpperFirst upper-cases the first rune of s.
func UpperFirst(s string) string {
	if s == "" {
		return ""
	}
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// NamespacePath maps a dotted namespace to a slash separated path.
func NamespacePath(ns string) string {
	return strings.ReplaceAll(ns, ".", "/")
}
