// Package obda parses and renders OBDA mapping documents.
//
// A mapping document has a header (prefix declarations and source metadata)
// followed by a [MappingDeclaration] @collection [[ ... ]] section of blocks.
// Each block carries a mappingId, a target (triple template with {placeholder}
// variables) and a source (SQL over the ingested tables). The studio keeps a
// template document whose placeholders get bound to real tables and columns.
package obda

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/hereditary-eu/obda-studio/internal/platform/errors"
)

// declarationMarker separates the document header from the mapping blocks.
const declarationMarker = "[MappingDeclaration]"

var (
	collectionRe  = regexp.MustCompile(`(?s)@collection\s*\[\[(.*)\]\]`)
	mappingIDRe   = regexp.MustCompile(`mappingId\s+(\S+)`)
	targetRe      = regexp.MustCompile(`(?s)target\s+(.*?)\nsource`)
	sourceRe      = regexp.MustCompile(`(?s)source\s+(.*)`)
	fromTableRe   = regexp.MustCompile(`FROM\s+"[^"]+"`)
	fromCaptureRe = regexp.MustCompile(`FROM\s+"([^"]+)"`)
	placeholderRe = regexp.MustCompile(`\{(\w+)\}`)
	blockSplitRe  = regexp.MustCompile(`\n\s*\nmappingId`)
)

// Block is one mapping declaration of the template document.
type Block struct {
	MappingID    string
	Target       string
	Source       string
	Table        string
	Placeholders []string
}

// Template is a parsed OBDA mapping document.
type Template struct {
	Header string
	Blocks []Block
}

// Selection binds one block's template to concrete schema elements.
type Selection struct {
	// Table replaces the FROM clause table of the block source.
	Table string
	// Columns maps each placeholder variable to a column of Table.
	Columns map[string]string
}

// Edge is one table.column -> ontology property binding, used by the
// mapping page visualization.
type Edge struct {
	FromID    string
	FromLabel string
	ToID      string
	ToLabel   string
}

// Parse splits an OBDA document into its header and mapping blocks.
func Parse(text string) (*Template, error) {
	header, rest, found := strings.Cut(text, declarationMarker)
	if !found {
		return nil, apperrors.New(apperrors.CodeMappingTemplateInvalid, "missing [MappingDeclaration] section")
	}

	collection := collectionRe.FindStringSubmatch(rest)
	if collection == nil {
		return nil, apperrors.New(apperrors.CodeMappingTemplateInvalid, "missing @collection [[ ... ]] body")
	}

	var blocks []Block
	for _, raw := range blockSplitRe.Split(strings.TrimSpace(collection[1]), -1) {
		chunk := strings.TrimSpace(raw)
		if chunk == "" {
			continue
		}
		if !strings.HasPrefix(chunk, "mappingId") {
			chunk = "mappingId " + chunk
		}

		block, err := parseBlock(chunk)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		return nil, apperrors.New(apperrors.CodeMappingTemplateInvalid, "mapping collection has no blocks")
	}

	return &Template{
		Header: strings.TrimSpace(header),
		Blocks: blocks,
	}, nil
}

// parseBlock extracts mappingId, target and source from one block chunk.
func parseBlock(chunk string) (Block, error) {
	id := mappingIDRe.FindStringSubmatch(chunk)
	if id == nil {
		return Block{}, apperrors.New(apperrors.CodeMappingTemplateInvalid, "mapping block without mappingId")
	}
	target := targetRe.FindStringSubmatch(chunk)
	if target == nil {
		return Block{}, apperrors.New(apperrors.CodeMappingTemplateInvalid, fmt.Sprintf("mapping %s has no target", id[1]))
	}
	source := sourceRe.FindStringSubmatch(chunk)
	if source == nil {
		return Block{}, apperrors.New(apperrors.CodeMappingTemplateInvalid, fmt.Sprintf("mapping %s has no source", id[1]))
	}

	block := Block{
		MappingID:    id[1],
		Target:       strings.TrimSpace(target[1]),
		Source:       strings.TrimSpace(source[1]),
		Placeholders: placeholders(strings.TrimSpace(target[1])),
	}
	if table := fromCaptureRe.FindStringSubmatch(block.Source); table != nil {
		block.Table = table[1]
	}
	return block, nil
}

// placeholders returns the sorted, deduplicated {var} names of a target.
func placeholders(target string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range placeholderRe.FindAllStringSubmatch(target, -1) {
		if seen[match[1]] {
			continue
		}
		seen[match[1]] = true
		names = append(names, match[1])
	}
	sort.Strings(names)
	return names
}

// Render rebuilds the OBDA document with the given selections applied.
// Every block needs a table selection and a column for each placeholder.
func (t *Template) Render(selections map[string]Selection) (string, error) {
	out := []string{t.Header, "", declarationMarker + " @collection [["}
	for _, block := range t.Blocks {
		selection, ok := selections[block.MappingID]
		if !ok || strings.TrimSpace(selection.Table) == "" {
			return "", apperrors.New(apperrors.CodeMappingSelectionMissing, fmt.Sprintf("mapping %s has no table selected", block.MappingID))
		}

		source := fromTableRe.ReplaceAllString(block.Source, fmt.Sprintf("FROM %q", selection.Table))
		for _, variable := range block.Placeholders {
			column := strings.TrimSpace(selection.Columns[variable])
			if column == "" {
				return "", apperrors.New(apperrors.CodeMappingSelectionMissing, fmt.Sprintf("mapping %s placeholder %s has no column selected", block.MappingID, variable))
			}
			source = substituteColumn(source, variable, column)
		}

		out = append(out,
			"mappingId\t"+block.MappingID,
			"target\t"+block.Target,
			"source\t"+source,
			"",
		)
	}
	out = append(out, "]]")
	return strings.Join(out, "\n"), nil
}

// substituteColumn swaps a placeholder variable for a column in block SQL,
// keeping the projection aliased back to the variable name so the target's
// {placeholder} references stay valid.
func substituteColumn(source, variable, column string) string {
	variableRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(variable) + `\b`)
	source = variableRe.ReplaceAllString(source, column)
	aliasRe := regexp.MustCompile(`\bAS\s+` + regexp.QuoteMeta(column) + `\b`)
	return aliasRe.ReplaceAllString(source, "AS "+variable)
}

// Graph derives visualization edges from the template and selections.
// Blocks or placeholders without a selection fall back to the template's
// own table and variable names, which keeps the graph rendering on GET.
func (t *Template) Graph(selections map[string]Selection) []Edge {
	var edges []Edge
	for _, block := range t.Blocks {
		table := block.Table
		selection, selected := selections[block.MappingID]
		if selected && strings.TrimSpace(selection.Table) != "" {
			table = selection.Table
		}

		for _, variable := range block.Placeholders {
			column := variable
			if selected {
				if chosen := strings.TrimSpace(selection.Columns[variable]); chosen != "" {
					column = chosen
				}
			}

			property := variable
			propertyRe := regexp.MustCompile(`(\w+:\w+)\s*\{\s*` + regexp.QuoteMeta(variable) + `\s*\}`)
			if match := propertyRe.FindStringSubmatch(block.Target); match != nil {
				property = match[1]
			}

			edges = append(edges, Edge{
				FromID:    Slugify(table + "_" + column),
				FromLabel: table + "." + column,
				ToID:      Slugify(property),
				ToLabel:   property,
			})
		}
	}
	return edges
}

// Slugify lowercases a value and collapses non-alphanumeric runs to single
// hyphens, producing identifiers safe for client-side diagram nodes.
func Slugify(value string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
