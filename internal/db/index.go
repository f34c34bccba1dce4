package db

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DistanceMetric for vector fields.
type DistanceMetric string

// DistanceCosine is the only metric the restaurant index uses; scores are cosine distances.
const DistanceCosine DistanceMetric = "COSINE"

// IndexFieldType enumerates the supported schema field types.
type IndexFieldType int

// Field types.
const (
	IndexFieldTag IndexFieldType = iota
	IndexFieldNumeric
	IndexFieldVector
)

// IndexField is one SCHEMA entry. Vector fields are always HNSW over FLOAT32.
type IndexField struct {
	Name  string
	Alias string
	Type  IndexFieldType

	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int // 0 keeps the server default
	VectorEFConstruct int // 0 keeps the server default
}

// IndexDefinition is an FT index over HASH documents.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate reports the first structural problem in the definition.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !validIdentifier(idx.Name) {
		return fmt.Errorf("index name %q contains invalid characters", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		key := f.Name
		if f.Alias != "" {
			key = f.Alias
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate field name: %s", key)
		}
		seen[key] = struct{}{}

		if f.Type == IndexFieldVector {
			if f.VectorDim <= 0 {
				return fmt.Errorf("vector field %s requires positive DIM", f.Name)
			}
			if f.VectorDistance == "" {
				return fmt.Errorf("vector field %s requires a distance metric", f.Name)
			}
		}
	}
	return nil
}

// Args renders the FT.CREATE arguments that follow the command name.
func (idx *IndexDefinition) Args() []string {
	args := []string{idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for i := range idx.Fields {
		args = append(args, idx.Fields[i].args()...)
	}
	return args
}

func (f *IndexField) args() []string {
	out := []string{f.Name}
	if f.Alias != "" {
		out = append(out, "AS", f.Alias)
	}
	switch f.Type {
	case IndexFieldTag:
		out = append(out, "TAG")
	case IndexFieldNumeric:
		out = append(out, "NUMERIC")
	case IndexFieldVector:
		attrs := []string{
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(f.VectorDim),
			"DISTANCE_METRIC", string(f.VectorDistance),
		}
		if f.VectorM > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
		}
		if f.VectorEFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
		}
		out = append(out, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
		out = append(out, attrs...)
	}
	return out
}

// String is the full FT.CREATE command line.
func (idx *IndexDefinition) String() string {
	return "FT.CREATE " + strings.Join(idx.Args(), " ")
}

// Fingerprint is the hex sha256 of String. Equal fingerprints mean the server
// received identical FT.CREATE commands.
func (idx *IndexDefinition) Fingerprint() string {
	h := sha256.Sum256([]byte(idx.String()))
	return hex.EncodeToString(h[:])
}

// validIdentifier accepts [a-zA-Z0-9_:-]+.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == ':' || r == '-':
		default:
			return false
		}
	}
	return true
}
