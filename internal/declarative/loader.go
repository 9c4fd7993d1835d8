package declarative

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadOptions configures YAML loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// LoadPath loads a single table file, or every .yaml/.yml file of a
// directory in name order.
func LoadPath(path string, opts LoadOptions) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("table files: %w", err)
	}
	if !info.IsDir() {
		return LoadFile(path, opts)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var docs []Document
	for _, name := range names {
		fileDocs, err := LoadFile(filepath.Join(path, name), opts)
		if err != nil {
			return nil, err
		}
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

// LoadFile reads every document of a table file.
func LoadFile(path string, opts LoadOptions) ([]Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified table files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Load(bytes.NewReader(data), path, opts)
}

// Load decodes a stream of YAML documents. source is recorded as each
// document's FilePath. Empty documents are skipped.
func Load(r io.Reader, source string, opts LoadOptions) ([]Document, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(!opts.AllowUnknownFields)

	var docs []Document
	for i := 1; ; i++ {
		var node yaml.Node
		err := decoder.Decode(&node)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s (document %d): %w", source, i, err)
		}
		if isEmptyDocument(&node) {
			continue
		}
		var doc Document
		err = decodeNode(&node, &doc, opts)
		if errors.Is(err, io.EOF) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s (document %d): %w", source, i, err)
		}
		doc.FilePath = source
		docs = append(docs, doc)
	}
}

// isEmptyDocument reports whether a document holds no content, which is how
// a comment-only document between separators decodes.
func isEmptyDocument(node *yaml.Node) bool {
	if len(node.Content) == 0 {
		return true
	}
	root := node.Content[0]
	return root.Kind == yaml.ScalarNode && root.Tag == "!!null"
}

// decodeNode re-encodes node so the strict decoder can check it; Node.Decode
// has no KnownFields switch.
func decodeNode(node *yaml.Node, target any, opts LoadOptions) error {
	if opts.AllowUnknownFields {
		return node.Decode(target)
	}
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	return decoder.Decode(target)
}
