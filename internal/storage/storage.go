// Package storage persists crawl output: one JSON document per meet under
// the results directory, plus the loaders the enrichment command reads
// primary and auxiliary dictionaries through.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/heatsheet/internal/model"
	"github.com/ppiankov/heatsheet/internal/validate"
)

// Storage writes meet documents under a season-partitioned results tree.
type Storage struct {
	resultsDir string
}

// New creates the storage root, expanding a leading ~.
func New(resultsDir string) (*Storage, error) {
	if strings.HasPrefix(resultsDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		resultsDir = filepath.Join(home, resultsDir[2:])
	}
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}
	return &Storage{resultsDir: resultsDir}, nil
}

// SaveMeet writes one meet document and returns its path. Re-crawling the
// same meet overwrites the previous document.
func (s *Storage) SaveMeet(m *model.Meet) (string, error) {
	dir := s.resultsDir
	if m.Season != "" {
		dir = filepath.Join(dir, m.Season)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating season directory: %w", err)
	}

	path := filepath.Join(dir, meetFilename(m))
	if err := SaveDocument(path, m); err != nil {
		return "", err
	}
	return path, nil
}

// SaveDocument writes any document as indented JSON.
func SaveDocument(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}

// LoadMeet reads one meet document.
func LoadMeet(path string) (*model.Meet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading meet document: %w", err)
	}
	var m model.Meet
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing meet document %s: %w", path, err)
	}
	return &m, nil
}

// LoadAuxiliary reads enrichment dictionaries. Each path may be a file or a
// directory of .json files. An unparseable file never aborts the load: it is
// reported in skipped and the remaining files continue. Files whose
// dictionary fails structural validation are skipped the same way.
func LoadAuxiliary(paths ...string) (dicts []*model.Dictionary, skipped []error) {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			skipped = append(skipped, &model.MalformedSourceError{Path: p, Err: err})
			continue
		}
		if !info.IsDir() {
			appendDictionary(p, &dicts, &skipped)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			skipped = append(skipped, &model.MalformedSourceError{Path: p, Err: err})
			continue
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			appendDictionary(filepath.Join(p, name), &dicts, &skipped)
		}
	}
	return dicts, skipped
}

func appendDictionary(path string, dicts *[]*model.Dictionary, skipped *[]error) {
	d, err := loadDictionary(path)
	if err != nil {
		*skipped = append(*skipped, err)
		return
	}
	*dicts = append(*dicts, d)
}

// loadDictionary accepts both full meet documents and bare dictionary files;
// the meet document embeds its dictionary, so one decode covers both.
func loadDictionary(path string) (*model.Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.MalformedSourceError{Path: path, Err: err}
	}
	var doc model.Meet
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &model.MalformedSourceError{Path: path, Err: err}
	}
	if doc.Swimmers == nil && doc.Teams == nil && len(doc.Badges) == 0 {
		return nil, &model.MalformedSourceError{Path: path, Err: errors.New("no dictionary content")}
	}
	d := doc.Dictionary
	if findings := validate.Dictionary(&d); len(findings) > 0 {
		return nil, &model.MalformedSourceError{
			Path: path,
			Err:  fmt.Errorf("%d dictionary findings, first: %s", len(findings), findings[0]),
		}
	}
	return &d, nil
}

// meetFilename derives a stable file name from the meet title, falling back
// to the source host and path.
func meetFilename(m *model.Meet) string {
	s := slugify(m.Title)
	if s == "" {
		if u, err := url.Parse(m.SourceURL); err == nil {
			s = slugify(u.Host + " " + u.Path)
		}
	}
	if s == "" {
		s = "meet"
	}
	return s + ".json"
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
