package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/heatsheet/internal/model"
)

func sampleMeet() *model.Meet {
	dict := model.NewDictionary("2024")
	dict.Swimmers["M|ROSSI|Mario|1990|Aquatica"] = &model.Swimmer{
		Key:      "M|ROSSI|Mario|1990|Aquatica",
		LastName: "ROSSI", FirstName: "Mario", YearOfBirth: 1990,
		Gender: model.GenderMale, TeamKey: "Aquatica",
	}
	dict.Teams["Aquatica"] = &model.Team{Key: "Aquatica", DisplayName: "Aquatica"}

	return &model.Meet{
		Title:      "Trofeo Invernale",
		SourceURL:  "https://portale.example/meet/812",
		Season:     "2024",
		Layout:     "portal",
		CrawledAt:  time.Date(2024, 12, 15, 18, 0, 0, 0, time.UTC),
		Dictionary: *dict,
		Events: []*model.Event{
			{Description: "100 SL Maschi", Gender: model.GenderMale, Distance: 100, Stroke: "SL"},
		},
	}
}

func TestSaveAndLoadMeet(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path, err := s.SaveMeet(sampleMeet())
	if err != nil {
		t.Fatalf("SaveMeet: %v", err)
	}
	if filepath.Base(path) != "trofeo-invernale.json" {
		t.Errorf("file name: %q", filepath.Base(path))
	}
	if filepath.Base(filepath.Dir(path)) != "2024" {
		t.Errorf("not under the season directory: %q", path)
	}

	got, err := LoadMeet(path)
	if err != nil {
		t.Fatalf("LoadMeet: %v", err)
	}
	if got.Title != "Trofeo Invernale" || got.Season != "2024" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if len(got.Swimmers) != 1 || len(got.Events) != 1 {
		t.Errorf("round trip lost dictionary or events: %+v", got)
	}
}

func TestSaveMeetFallbackName(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m := sampleMeet()
	m.Title = ""

	path, err := s.SaveMeet(m)
	if err != nil {
		t.Fatalf("SaveMeet: %v", err)
	}
	if filepath.Base(path) != "portale-example-meet-812.json" {
		t.Errorf("fallback name: %q", filepath.Base(path))
	}
}

func TestLoadAuxiliarySkipsMalformed(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("a-meet.json", `{"title":"Meet A","season":"2023","swimmers":{"M|ROSSI|Mario|1990":{"key":"M|ROSSI|Mario|1990","last_name":"ROSSI","first_name":"Mario","year_of_birth":1990,"gender":"M"}},"teams":{}}`)
	write("b-dict.json", `{"season":"2022","swimmers":{},"teams":{"Aquatica":{"key":"Aquatica","display_name":"Aquatica"}}}`)
	write("c-broken.json", `{"swimmers": [not json`)
	write("d-unrelated.json", `{"rows": [1, 2, 3]}`)
	write("e-ignored.txt", `not a dictionary`)
	write("f-inconsistent.json", `{"season":"2021","swimmers":{"M|NERI|Paolo|1985":{"key":"M|NERI|Paolo|1985"}},"teams":{}}`)

	dicts, skipped := LoadAuxiliary(dir)
	if len(dicts) != 2 {
		t.Fatalf("got %d dictionaries, want 2", len(dicts))
	}
	if dicts[0].Season != "2023" || dicts[1].Season != "2022" {
		t.Errorf("load order: %q, %q", dicts[0].Season, dicts[1].Season)
	}
	if len(skipped) != 3 {
		t.Fatalf("got %d skipped, want 3: %v", len(skipped), skipped)
	}
	var sawFindings bool
	for _, err := range skipped {
		var merr *model.MalformedSourceError
		if !errors.As(err, &merr) {
			t.Errorf("skip reason is not a malformed-source error: %v", err)
		}
		if strings.Contains(err.Error(), "dictionary findings") {
			sawFindings = true
		}
	}
	if !sawFindings {
		t.Errorf("no skip reason reports validation findings: %v", skipped)
	}
}

func TestLoadAuxiliaryMissingPath(t *testing.T) {
	dicts, skipped := LoadAuxiliary(filepath.Join(t.TempDir(), "absent.json"))
	if len(dicts) != 0 || len(skipped) != 1 {
		t.Fatalf("dicts=%d skipped=%d", len(dicts), len(skipped))
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Trofeo Citta di Riccione", "trofeo-citta-di-riccione"},
		{"  XV  Meeting -- Master!  ", "xv-meeting-master"},
		{"2024/2025", "2024-2025"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
