package notebook

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// FileEncoder marks scraps whose data names output files.
const FileEncoder = "file"

const scrapPrefix = "application/scrapbook.scrap."

// Scrap is one recorded output.
type Scrap struct {
	Name    string
	Encoder string
	Data    gjson.Result
}

// Document is an executed notebook's recorded outputs.
type Document struct {
	path     string
	scraps   map[string]Scrap
	displays map[string]gjson.Result
}

// Open reads the notebook at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.path = path
	return doc, nil
}

// Parse extracts scraps from notebook JSON. When a name is recorded more
// than once the last record wins.
func Parse(data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidDocument
	}
	doc := &Document{
		scraps:   make(map[string]Scrap),
		displays: make(map[string]gjson.Result),
	}

	gjson.GetBytes(data, "cells.#.outputs").ForEach(func(_, outputs gjson.Result) bool {
		outputs.ForEach(func(_, out gjson.Result) bool {
			doc.addOutput(out)
			return true
		})
		return true
	})
	return doc, nil
}

func (d *Document) addOutput(out gjson.Result) {
	bundle := out.Get("data")
	meta := out.Get("metadata.scrapbook")

	if meta.Get("display").Bool() {
		if name := meta.Get("name").String(); name != "" {
			d.displays[name] = bundle
		}
	}

	bundle.ForEach(func(mime, value gjson.Result) bool {
		if !strings.HasPrefix(mime.String(), scrapPrefix) {
			return true
		}
		name := value.Get("name").String()
		if name == "" {
			return true
		}
		d.scraps[name] = Scrap{
			Name:    name,
			Encoder: value.Get("encoder").String(),
			Data:    value.Get("data"),
		}
		return true
	})
}

// Path returns the notebook path, empty for parsed documents.
func (d *Document) Path() string { return d.path }

// Scrap returns the named data scrap.
func (d *Document) Scrap(name string) (Scrap, bool) {
	s, ok := d.scraps[name]
	return s, ok
}

// SavedOutputs returns the names of all data scraps, sorted.
func (d *Document) SavedOutputs() []string {
	names := make([]string, 0, len(d.scraps))
	for name := range d.scraps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SavedOutputFiles returns the files named by file scraps, sorted and
// without duplicates. A file scrap holds one name or a list of names.
func (d *Document) SavedOutputFiles() []string {
	seen := make(map[string]bool)
	var files []string
	add := func(v gjson.Result) {
		if f := v.String(); f != "" && !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	for _, s := range d.scraps {
		if s.Encoder != FileEncoder {
			continue
		}
		if s.Data.IsArray() {
			s.Data.ForEach(func(_, v gjson.Result) bool {
				add(v)
				return true
			})
			continue
		}
		add(s.Data)
	}
	sort.Strings(files)
	return files
}

// Read returns a recorded output.
//
// With display set it returns the display bundle (mime type to content).
// With raw set it returns the undecoded JSON text of the data. Otherwise
// the data is decoded: text scraps as string, everything else as the
// generic JSON value (map[string]any, []any, float64, string, bool or nil).
func (d *Document) Read(name string, display, raw bool) (any, error) {
	if display {
		bundle, ok := d.displays[name]
		if !ok {
			return nil, fmt.Errorf("%w: display %q", ErrNotFound, name)
		}
		if raw {
			return bundle.Raw, nil
		}
		return bundle.Value(), nil
	}

	s, ok := d.scraps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if raw {
		return s.Data.Raw, nil
	}
	if s.Encoder == "text" {
		return s.Data.String(), nil
	}
	return s.Data.Value(), nil
}
