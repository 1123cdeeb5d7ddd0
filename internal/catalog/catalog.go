// Package catalog loads the allowed-query catalog for the protected
// SPARQL gateway.
//
// The catalog is a markdown document of "## Level N" sections, each holding
// fenced ```sparql templates. Every template is hashed with SHA-512 over its
// exact text; the gateway authorizes submitted templates by hash and level.
package catalog

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	levelSectionRe = regexp.MustCompile(`(?m)^##\s*Level\s*(\d+)\s*$`)
	sparqlFenceRe  = regexp.MustCompile("(?s)```sparql\\s*(.+?)```")
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// Entry is one allowed query template.
type Entry struct {
	Hash  string
	Level int
	Query string
}

// Writer persists catalog entries.
type Writer interface {
	PutAllowedQuery(ctx context.Context, hash string, level int, query string) error
}

// Parse extracts the allowed-query entries from a markdown catalog.
func Parse(text string) ([]Entry, error) {
	sections := levelSectionRe.FindAllStringSubmatchIndex(text, -1)
	if len(sections) == 0 {
		return nil, fmt.Errorf("catalog has no level sections")
	}

	var entries []Entry
	for i, section := range sections {
		level, err := strconv.Atoi(text[section[2]:section[3]])
		if err != nil {
			return nil, fmt.Errorf("parse level heading: %w", err)
		}

		bodyEnd := len(text)
		if i+1 < len(sections) {
			bodyEnd = sections[i+1][0]
		}
		body := text[section[1]:bodyEnd]

		for _, fence := range sparqlFenceRe.FindAllStringSubmatch(body, -1) {
			query := strings.TrimSpace(fence[1])
			if query == "" {
				continue
			}
			entries = append(entries, Entry{
				Hash:  HashQuery(query),
				Level: level,
				Query: query,
			})
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog has no sparql templates")
	}
	return entries, nil
}

// HashQuery returns the hex SHA-512 digest of the exact template text.
func HashQuery(query string) string {
	sum := sha512.Sum512([]byte(query))
	return hex.EncodeToString(sum[:])
}

// NormalizeSpace collapses any whitespace run to a single space and trims.
// Template equality checks use the normalized form so clients may reflow
// a template without breaking its authorization.
func NormalizeSpace(value string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(value, " "))
}

// Store writes all entries through the writer, stopping on the first error.
func Store(ctx context.Context, writer Writer, entries []Entry) error {
	for _, entry := range entries {
		if err := writer.PutAllowedQuery(ctx, entry.Hash, entry.Level, entry.Query); err != nil {
			return fmt.Errorf("store level %d query: %w", entry.Level, err)
		}
	}
	return nil
}
