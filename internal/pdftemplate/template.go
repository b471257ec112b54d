// Package pdftemplate extracts structured fields and repeating line
// blocks from raw PDF text using declarative YAML templates. A template
// carries detection keywords, per-field regex rules with a typed value
// pipeline, and an optional line-block grammar.
package pdftemplate

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/rezonia/docexchange/internal/model"
)

// Template is one declarative extraction recipe. Detection requires every
// keyword pattern to match and every exclude pattern to miss
type Template struct {
	Name            string                `yaml:"name"`
	Keywords        []string              `yaml:"keywords"`
	ExcludeKeywords []string              `yaml:"exclude_keywords"`
	Options         Options               `yaml:"options"`
	Fields          map[string]*FieldRule `yaml:"fields"`
	Lines           *LineBlock            `yaml:"lines"`
	RequiredFields  []string              `yaml:"required_fields"`

	keywordRe []*regexp.Regexp
	excludeRe []*regexp.Regexp
}

// Options tune the text preparation applied before any rule runs
type Options struct {
	RemoveWhitespace bool        `yaml:"remove_whitespace"`
	RemoveAccents    bool        `yaml:"remove_accents"`
	Lowercase        bool        `yaml:"lowercase"`
	Replaces         [][2]string `yaml:"replace"`
	// DecimalSeparator is the template-wide default for float fields
	DecimalSeparator string `yaml:"decimal_separator"`
	// DateFormat is the template-wide default layout, Go reference form
	DateFormat string `yaml:"date_format"`
}

// FieldRule extracts one value. In YAML it is either a bare regex string
// or a mapping with the full rule
type FieldRule struct {
	Pattern          string            `yaml:"pattern"`
	Filter           string            `yaml:"filter"`
	Type             string            `yaml:"type"`
	DateFormat       string            `yaml:"date_format"`
	DecimalSeparator string            `yaml:"decimal_separator"`
	Map              map[string]string `yaml:"map"`
	Default          string            `yaml:"default"`
	// SearchField resolves the raw value against a catalog attribute
	// (partner.vat, product.code, ...) instead of keeping the literal text
	SearchField string `yaml:"search_field"`
	// Column selects the whitespace-split column of a line record when no
	// Pattern is given
	Column *int `yaml:"column"`

	re       *regexp.Regexp
	filterRe *regexp.Regexp
}

// UnmarshalYAML accepts both the shorthand string form and the full
// mapping form
func (r *FieldRule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Pattern = node.Value
		return nil
	}
	type plain FieldRule
	return node.Decode((*plain)(r))
}

// LineBlock describes the repeating line section of a document
type LineBlock struct {
	StartBlock string `yaml:"start_block"`
	EndBlock   string `yaml:"end_block"`
	// Start and End group consecutive physical lines into one logical
	// record. When absent every physical line is a record
	Start  string                `yaml:"start"`
	End    string                `yaml:"end"`
	Fields map[string]*FieldRule `yaml:"fields"`

	startBlockRe *regexp.Regexp
	endBlockRe   *regexp.Regexp
	startRe      *regexp.Regexp
	endRe        *regexp.Regexp
}

// ParseTemplate loads and compiles a YAML template
func ParseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, model.NewParseError("pdftemplate", "yaml", "invalid template", err)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Template) compile() error {
	if t.Name == "" {
		return model.NewParseError("pdftemplate", "name", "template has no name", nil)
	}
	if len(t.Keywords) == 0 {
		return model.NewParseError("pdftemplate", "keywords",
			fmt.Sprintf("template %q declares no detection keywords", t.Name), nil)
	}
	for _, kw := range t.Keywords {
		re, err := regexp.Compile(kw)
		if err != nil {
			return model.NewParseError("pdftemplate", "keywords", "invalid pattern "+kw, err)
		}
		t.keywordRe = append(t.keywordRe, re)
	}
	for _, kw := range t.ExcludeKeywords {
		re, err := regexp.Compile(kw)
		if err != nil {
			return model.NewParseError("pdftemplate", "exclude_keywords", "invalid pattern "+kw, err)
		}
		t.excludeRe = append(t.excludeRe, re)
	}
	for name, rule := range t.Fields {
		if err := rule.compile(name); err != nil {
			return err
		}
	}
	if t.Lines != nil {
		if err := t.Lines.compile(); err != nil {
			return err
		}
	}
	return nil
}

func (r *FieldRule) compile(name string) error {
	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return model.NewParseError("pdftemplate", name, "invalid pattern "+r.Pattern, err)
		}
		if re.NumSubexp() != 1 {
			return model.NewParseError("pdftemplate", name,
				fmt.Sprintf("pattern must have exactly one capture group, has %d", re.NumSubexp()), nil)
		}
		r.re = re
	}
	if r.Filter != "" {
		re, err := regexp.Compile(r.Filter)
		if err != nil {
			return model.NewParseError("pdftemplate", name, "invalid filter "+r.Filter, err)
		}
		r.filterRe = re
	}
	if r.SearchField != "" && !searchFields[r.SearchField] {
		return model.NewParseError("pdftemplate", name, "unknown search field "+r.SearchField, nil)
	}
	if r.Pattern == "" && r.Column == nil && r.Default == "" {
		return model.NewParseError("pdftemplate", name, "rule needs a pattern, a column or a default", nil)
	}
	return nil
}

func (b *LineBlock) compile() error {
	var err error
	if b.StartBlock == "" || b.EndBlock == "" {
		return model.NewParseError("pdftemplate", "lines", "line block needs start_block and end_block", nil)
	}
	if b.startBlockRe, err = regexp.Compile(b.StartBlock); err != nil {
		return model.NewParseError("pdftemplate", "lines", "invalid start_block", err)
	}
	if b.endBlockRe, err = regexp.Compile(b.EndBlock); err != nil {
		return model.NewParseError("pdftemplate", "lines", "invalid end_block", err)
	}
	if b.Start != "" {
		if b.startRe, err = regexp.Compile(b.Start); err != nil {
			return model.NewParseError("pdftemplate", "lines", "invalid start", err)
		}
	}
	if b.End != "" {
		if b.endRe, err = regexp.Compile(b.End); err != nil {
			return model.NewParseError("pdftemplate", "lines", "invalid end", err)
		}
	}
	for name, rule := range b.Fields {
		if err := rule.compile("lines." + name); err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether this template recognizes the prepared text
func (t *Template) Matches(text string) bool {
	for _, re := range t.keywordRe {
		if !re.MatchString(text) {
			return false
		}
	}
	for _, re := range t.excludeRe {
		if re.MatchString(text) {
			return false
		}
	}
	return true
}
