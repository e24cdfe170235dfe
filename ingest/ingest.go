// Package ingest reads friend-group feeds and applies them to a graph.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TFMV/friendgraph/graph"
	"github.com/goccy/go-json"
)

// Group is one friend-group submission: everyone in Names knows each other
// since Date.
type Group struct {
	Names []string  `json:"names"`
	Date  time.Time `json:"date"`
}

// Parser defines the interface that all feed parsers must implement
type Parser interface {
	// Parse takes raw feed bytes and returns the groups in file order
	Parse(data []byte) ([]Group, error)

	// Name returns the name of the parser
	Name() string
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseDate accepts a year, a year and month, a calendar date or an RFC 3339
// timestamp. Partial dates resolve to the first day of the period in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// JSONParser handles feeds of the form {"groups":[{"names":[...],"date":"2020"}]}.
type JSONParser struct{}

// Name returns the name of the parser
func (p *JSONParser) Name() string {
	return "JSON Parser"
}

// Parse parses a JSON feed
func (p *JSONParser) Parse(data []byte) ([]Group, error) {
	var feed struct {
		Groups []struct {
			Names []string `json:"names"`
			Date  string   `json:"date"`
		} `json:"groups"`
	}
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}

	groups := make([]Group, 0, len(feed.Groups))
	for i, g := range feed.Groups {
		date, err := ParseDate(g.Date)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		if len(g.Names) == 0 {
			return nil, fmt.Errorf("group %d: %w", i, graph.ErrEmptyGroup)
		}
		groups = append(groups, Group{Names: g.Names, Date: date})
	}
	return groups, nil
}

// CSVParser handles one group per row: date,name1,name2,...
// Blank rows and rows starting with # are skipped.
type CSVParser struct{}

// Name returns the name of the parser
func (p *CSVParser) Name() string {
	return "CSV Parser"
}

// Parse parses a CSV feed
func (p *CSVParser) Parse(data []byte) ([]Group, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.Comment = '#'
	r.TrimLeadingSpace = true

	var groups []Group
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing CSV: %w", err)
		}
		line, _ := r.FieldPos(0)

		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: want a date and at least one name", line)
		}
		date, err := ParseDate(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		names := make([]string, 0, len(record)-1)
		for _, n := range record[1:] {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("line %d: %w", line, graph.ErrEmptyGroup)
		}
		groups = append(groups, Group{Names: names, Date: date})
	}
	return groups, nil
}

// GetParser returns a parser for the given format
func GetParser(format string) (Parser, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json":
		return &JSONParser{}, nil
	case "csv":
		return &CSVParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported feed format: %s", format)
	}
}

// ParseFile reads a feed file, choosing the parser by extension.
func ParseFile(path string) ([]Group, error) {
	parser, err := GetParser(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	groups, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return groups, nil
}

// Apply adds every group to g in order. Re-applying a feed is harmless:
// names resolve to the same nodes and edges keep their earliest date.
func Apply(g *graph.Graph, groups []Group) error {
	for i, grp := range groups {
		if _, err := g.AddFriendGroup(grp.Names, grp.Date); err != nil {
			return fmt.Errorf("group %d: %w", i, err)
		}
	}
	return nil
}
