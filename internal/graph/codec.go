package graph

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/persistorai/pathmerge/internal/models"
)

// Decode reads a JSON document and builds its graph. Every edge and
// back-reference must name a node of the same document.
func Decode(r io.Reader) (*Graph, error) {
	var doc models.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	return FromDocument(&doc)
}

// FromDocument builds a graph from an already parsed document.
func FromDocument(doc *models.Document) (*Graph, error) {
	g := New()

	for i := range doc.Nodes {
		rec := &doc.Nodes[i]
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", i, rec.ID, err)
		}

		typ := rec.Type
		if typ == "" && rec.Xref != nil {
			typ = rec.Xref.Kind.TypeName()
		}

		n := models.NewNode(rec.Kind, typ, rec.ID)
		for key, values := range rec.Properties {
			for _, v := range values {
				n.AddValue(key, v)
			}
		}

		if rec.Xref != nil {
			x := *rec.Xref
			n.Xref = &x
		}

		if err := g.Add(n); err != nil {
			return nil, err
		}
	}

	for i := range doc.Nodes {
		rec := &doc.Nodes[i]
		n := g.nodes[rec.ID]

		if err := link(g, rec.ID, rec.Edges, n.AddEdge); err != nil {
			return nil, err
		}

		if err := link(g, rec.ID, rec.Inverse, func(name string, t *models.Node) bool {
			n.AddInverse(name, t)
			return true
		}); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func link(g *Graph, owner string, refs map[string][]string, add func(string, *models.Node) bool) error {
	for name, ids := range refs {
		for _, id := range ids {
			t := g.nodes[id]
			if t == nil {
				return fmt.Errorf("%s.%s -> %s: %w", owner, name, id, models.ErrUnknownReference)
			}

			add(name, t)
		}
	}

	return nil
}

// ToDocument converts g into its interchange form, nodes in id order.
func ToDocument(g *Graph) *models.Document {
	doc := &models.Document{Nodes: make([]models.NodeRecord, 0, g.Len())}

	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, Record(n))
	}

	return doc
}

// Record converts one node into its interchange form, naming neighbours by id.
func Record(n *models.Node) models.NodeRecord {
	rec := models.NodeRecord{
		ID:      n.ID,
		Kind:    n.Kind,
		Type:    n.Type,
		Xref:    n.Xref,
		Edges:   idLists(n.OutboundEdges()),
		Inverse: idLists(n.InverseEdges()),
	}

	if len(n.Properties) > 0 {
		rec.Properties = n.Properties
	}

	return rec
}

func idLists(edges []models.Edge) map[string][]string {
	if len(edges) == 0 {
		return nil
	}

	out := map[string][]string{}
	for _, e := range edges {
		out[e.Name] = append(out[e.Name], e.Target.ID)
	}

	return out
}

// Encode writes g as an indented JSON document.
func Encode(w io.Writer, g *Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(ToDocument(g)); err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	return nil
}

// ReadFile decodes a document file; names ending in .gz are gunzipped.
func ReadFile(path string) (*Graph, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)

	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		defer gz.Close()

		r = gz
	}

	g, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return g, nil
}

// WriteFile encodes g to path, gzipped when the name ends in .gz.
func WriteFile(path string, g *Graph) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	var w io.Writer = f

	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := Encode(w, g); err != nil {
		f.Close()
		return err
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return fmt.Errorf("flushing gzip stream %s: %w", path, err)
		}
	}

	return f.Close()
}
