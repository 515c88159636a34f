package ingestion

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind classifies how a source file is turned into chunks.
type Kind string

const (
	// KindProse sources are extracted to free text, pooled with the other
	// prose sources and chunked once.
	KindProse Kind = "prose"
	// KindTabular sources yield one pre-formatted sentence per row and
	// bypass the chunker.
	KindTabular Kind = "tabular"
)

// Source describes one file to ingest.
type Source struct {
	// Path is the filesystem path of the source file.
	Path string

	// Kind selects the extractor.
	Kind Kind

	// Tag is the short label stored on every chunk produced from this
	// source (e.g. "fire-stations").
	Tag string
}

// extensionKinds maps lower-cased file extensions to their source kind.
var extensionKinds = map[string]Kind{
	".pdf": KindProse,
	".txt": KindProse,
	".md":  KindProse,
	".csv": KindTabular,
	".tsv": KindTabular,
}

// InferSource derives a Source from a path: the kind comes from the file
// extension and the tag from the file name without its extension. An
// unrecognised extension is an error so misconfigured paths surface at
// startup instead of being silently skipped.
func InferSource(path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	kind, ok := extensionKinds[ext]
	if !ok {
		return Source{}, fmt.Errorf("ingestion: cannot infer source kind for %q (supported: .pdf, .txt, .md, .csv, .tsv)", path)
	}
	base := filepath.Base(path)
	tag := strings.TrimSuffix(base, filepath.Ext(base))
	if tag == "" {
		tag = string(kind)
	}
	return Source{Path: path, Kind: kind, Tag: tag}, nil
}

// Sources builds the ingestion list from configured prose and tabular paths.
// Each list forces its kind regardless of extension; empty entries are
// ignored.
func Sources(prose, tabular []string) []Source {
	out := make([]Source, 0, len(prose)+len(tabular))
	add := func(paths []string, kind Kind) {
		for _, p := range paths {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			src, err := InferSource(p)
			if err != nil {
				base := filepath.Base(p)
				src = Source{Path: p, Tag: strings.TrimSuffix(base, filepath.Ext(base))}
			}
			src.Kind = kind
			out = append(out, src)
		}
	}
	add(prose, KindProse)
	add(tabular, KindTabular)
	return out
}
