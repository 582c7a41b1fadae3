// Package loader reads raw content records from JSON, JSON Lines and YAML files.
// It does not validate; every record goes to the schema validator untouched.
package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// DefaultExtensions are the file types Load picks up when walking directories.
var DefaultExtensions = []string{".json", ".jsonl", ".yaml", ".yml"}

// Record is one raw candidate entry and where it came from.
type Record struct {
	Source string         `json:"source"`
	Index  int            `json:"index"` // position within Source
	Raw    map[string]any `json:"raw"`
}

// FileError reports a file that could not be read or parsed.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e *FileError) Unwrap() error { return e.Err }

// Result is the outcome of a load. Records are ordered by source path then index.
type Result struct {
	Records []Record
	Errors  []*FileError
}

// Loader expands paths into content files and parses them in parallel.
type Loader struct {
	extensions map[string]bool
	workers    int
	logger     *slog.Logger
}

// New creates a loader. Empty extensions means DefaultExtensions; workers < 1 means 4.
func New(extensions []string, workers int, logger *slog.Logger) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if workers < 1 {
		workers = 4
	}
	ext := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		ext[e] = true
	}
	return &Loader{extensions: ext, workers: workers, logger: logger}
}

// Accepts reports whether path has one of the loader's extensions.
func (l *Loader) Accepts(path string) bool {
	return l.extensions[strings.ToLower(filepath.Ext(path))]
}

// Files expands paths into a sorted, de-duplicated list of content files.
// Directories are walked recursively; hidden directories are skipped. Files named
// explicitly are kept whatever their extension.
func (l *Loader) Files(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("loader: %w", err)
		}
		if !info.IsDir() {
			add(filepath.Clean(root))
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if l.Accepts(p) {
				add(filepath.Clean(p))
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("loader: walking %s: %w", root, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Load reads every content file under paths. Unreadable or malformed files are
// reported in Result.Errors and do not stop the load; only context cancellation
// and path expansion failures are returned as errors.
func (l *Loader) Load(ctx context.Context, paths []string) (*Result, error) {
	files, err := l.Files(paths)
	if err != nil {
		return nil, err
	}

	perFile := make([][]Record, len(files))
	fileErrs := make([]*FileError, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, err := ReadFile(path)
			if err != nil {
				fileErrs[i] = &FileError{Path: path, Err: err}
				l.logger.Warn("skipping unreadable content file", "path", path, "error", err)
				return nil
			}
			perFile[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}

	res := &Result{}
	for i := range files {
		res.Records = append(res.Records, perFile[i]...)
		if fileErrs[i] != nil {
			res.Errors = append(res.Errors, fileErrs[i])
		}
	}
	l.logger.Debug("loaded content files", "files", len(files), "records", len(res.Records), "errors", len(res.Errors))
	return res, nil
}

// ReadFile parses one file, picking the format from its extension.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Decode(f, FormatOf(path), path)
}

// FormatOf maps a file extension to "json", "jsonl" or "yaml". Unknown
// extensions are treated as JSON.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return "jsonl"
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

// Decode parses records from r in the given format. JSON may hold one object or
// an array; JSON Lines holds one object per line; YAML may hold several documents,
// each an object or a list of objects.
func Decode(r io.Reader, format, source string) ([]Record, error) {
	switch strings.ToLower(format) {
	case "json":
		return decodeJSON(r, source)
	case "jsonl":
		return decodeJSONL(r, source)
	case "yaml", "yml":
		return decodeYAML(r, source)
	}
	return nil, fmt.Errorf("unsupported format %q (use json, jsonl or yaml)", format)
}

func decodeJSON(r io.Reader, source string) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	out, err := appendDoc(nil, v, source)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeJSONL(r io.Reader, source string) ([]Record, error) {
	var out []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(text), &m); err != nil {
			return nil, fmt.Errorf("decoding JSONL line %d: %w", line, err)
		}
		out = append(out, Record{Source: source, Index: len(out), Raw: m})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading JSONL: %w", err)
	}
	return out, nil
}

func decodeYAML(r io.Reader, source string) ([]Record, error) {
	var out []Record
	dec := yaml.NewDecoder(r)
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding YAML: %w", err)
		}
		if v == nil {
			continue
		}
		if out, err = appendDoc(out, v, source); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// appendDoc adds a decoded document that is either one record or a list of them.
func appendDoc(out []Record, v any, source string) ([]Record, error) {
	switch t := v.(type) {
	case map[string]any:
		return append(out, Record{Source: source, Index: len(out), Raw: t}), nil
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = val
		}
		return append(out, Record{Source: source, Index: len(out), Raw: m}), nil
	case []any:
		for i, item := range t {
			if _, isList := item.([]any); isList {
				return nil, fmt.Errorf("item %d: nested lists are not records", i)
			}
			var err error
			if out, err = appendDoc(out, item, source); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected an object or a list of objects, got %T", v)
}
