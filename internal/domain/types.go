package domain

import (
	"fmt"
	"path"
	"strings"
)

type ValueKind string

const (
	KindString ValueKind = "str"
	KindFile   ValueKind = "file"
)

// ValueType is the declared type of an input or output binding. File types
// carry the expected file format (extension without the dot).
type ValueType struct {
	Kind   ValueKind
	Format string
}

func String() ValueType {
	return ValueType{Kind: KindString}
}

func File(format string) ValueType {
	return ValueType{Kind: KindFile, Format: strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")}
}

func (t ValueType) String() string {
	if t.Kind == KindFile && t.Format != "" {
		return fmt.Sprintf("file[%s]", t.Format)
	}
	return string(t.Kind)
}

func (t ValueType) Valid() bool {
	switch t.Kind {
	case KindString:
		return t.Format == ""
	case KindFile:
		return true
	default:
		return false
	}
}

// Compatible reports whether a value of type other can be bound to t. A file
// input without a format accepts any file.
func (t ValueType) Compatible(other ValueType) bool {
	if t.Kind != other.Kind {
		return false
	}
	if t.Kind == KindFile && t.Format != "" && other.Format != "" {
		return t.Format == other.Format
	}
	return true
}

// ParseValueType parses the String form back into a ValueType.
func ParseValueType(raw string) (ValueType, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == string(KindString):
		return String(), nil
	case raw == string(KindFile):
		return ValueType{Kind: KindFile}, nil
	case strings.HasPrefix(raw, "file[") && strings.HasSuffix(raw, "]"):
		return File(raw[len("file[") : len(raw)-1]), nil
	default:
		return ValueType{}, fmt.Errorf("unsupported value type %q", raw)
	}
}

type BindingKind string

const (
	ValueLiteral  BindingKind = "literal"
	ValueParam    BindingKind = "param"
	ValueArtifact BindingKind = "artifact"
)

// Value is what an input is bound to: a literal, a workflow parameter, or the
// output artifact of an earlier job.
type Value struct {
	Kind     BindingKind
	Literal  string
	Param    string
	Artifact ArtifactRef
}

func Literal(v string) Value {
	return Value{Kind: ValueLiteral, Literal: v}
}

func ParamValue(name string) Value {
	return Value{Kind: ValueParam, Param: name}
}

func ArtifactValue(ref ArtifactRef) Value {
	return Value{Kind: ValueArtifact, Artifact: ref}
}

func (v Value) IsZero() bool {
	return v.Kind == ""
}

// ArtifactRef points at a named output of a declared job. Consumers hold the
// reference only; the platform owns the file.
type ArtifactRef struct {
	Job    string
	Output string
}

func (r ArtifactRef) Value() Value {
	return ArtifactValue(r)
}

func (r ArtifactRef) IsZero() bool {
	return r.Job == "" && r.Output == ""
}

type ArtifactKind string

const (
	ArtifactData   ArtifactKind = "DATA"
	ArtifactModel  ArtifactKind = "MODEL"
	ArtifactReport ArtifactKind = "REPORT"
)

func (k ArtifactKind) Valid() bool {
	switch k {
	case ArtifactData, ArtifactModel, ArtifactReport:
		return true
	default:
		return false
	}
}

// ArtifactCollection is a label grouping outputs for bulk export. It holds no data.
type ArtifactCollection struct {
	Name string
	Kind ArtifactKind
}

// File declares an output file tagged into the collection. The output type
// format is taken from the filename extension.
func (c ArtifactCollection) File(name, filename string) Output {
	collection := c
	return Output{
		Name:       name,
		Type:       File(path.Ext(filename)),
		Filename:   filename,
		Collection: &collection,
	}
}
