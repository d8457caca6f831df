package decode

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knakk/rdf"
)

func init() {
	MustRegister("rdf", DecoderFunc(decodeRDF))
}

// Graph 是 RDF 解码结果。N-Quads 的图上下文不会保留。
type Graph struct {
	Triples []rdf.Triple
}

// Len 返回三元组数量。
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Triples)
}

// Subjects 返回去重后的主语，按首次出现顺序排列。
func (g *Graph) Subjects() []string {
	if g == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(g.Triples))
	var out []string
	for _, triple := range g.Triples {
		s := triple.Subj.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

type rdfOptions struct {
	Format string `mapstructure:"format"`
	Base   string `mapstructure:"base"`
}

var rdfFormats = map[string]rdf.Format{
	"turtle":   rdf.Turtle,
	"ttl":      rdf.Turtle,
	"ntriples": rdf.NTriples,
	"nt":       rdf.NTriples,
	"nquads":   rdf.NQuads,
	"nq":       rdf.NQuads,
	"rdfxml":   rdf.RDFXML,
	"xml":      rdf.RDFXML,
}

var rdfExtensions = map[string]string{
	".ttl": "turtle",
	".nt":  "ntriples",
	".nq":  "nquads",
	".rdf": "rdfxml",
	".owl": "rdfxml",
	".xml": "rdfxml",
}

func decodeRDF(in Input, opts Options) (any, error) {
	var o rdfOptions
	if err := decodeOptions(opts, &o); err != nil {
		return nil, err
	}
	format, err := rdfFormat(o.Format, in.Name)
	if err != nil {
		return nil, err
	}

	graph := &Graph{}
	if format == rdf.NQuads {
		quads, err := rdf.NewQuadDecoder(in.Reader, rdf.NQuads).DecodeAll()
		if err != nil {
			return nil, err
		}
		for _, quad := range quads {
			graph.Triples = append(graph.Triples, quad.Triple)
		}
		return graph, nil
	}

	dec := rdf.NewTripleDecoder(in.Reader, format)
	if o.Base != "" {
		base, err := rdf.NewIRI(o.Base)
		if err != nil {
			return nil, fmt.Errorf("invalid base: %w", err)
		}
		if err := dec.SetOption(rdf.Base, base); err != nil {
			return nil, err
		}
	}
	graph.Triples, err = dec.DecodeAll()
	if err != nil {
		return nil, err
	}
	return graph, nil
}

// rdfFormat 优先使用显式 format，否则根据文件扩展名推断。
func rdfFormat(explicit, name string) (rdf.Format, error) {
	key := strings.ToLower(strings.TrimSpace(explicit))
	if key == "" {
		key = rdfExtensions[strings.ToLower(filepath.Ext(name))]
	}
	if key == "" {
		return 0, fmt.Errorf("cannot infer rdf format from %q; set the format option", name)
	}
	format, ok := rdfFormats[key]
	if !ok {
		return 0, fmt.Errorf("unsupported rdf format %q", explicit)
	}
	return format, nil
}
