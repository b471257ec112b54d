package pdftemplate

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rezonia/docexchange/internal/logging"
	"github.com/rezonia/docexchange/internal/match"
	"github.com/rezonia/docexchange/internal/model"
)

// Engine holds a template library and runs detection plus extraction
type Engine struct {
	Templates []*Template
	// Catalog backs search_field resolution; nil keeps extracted literals
	Catalog match.Catalog
}

// NewEngine builds an engine over a template library
func NewEngine(templates ...*Template) *Engine {
	return &Engine{Templates: templates}
}

// Result is one successful extraction: typed header values plus line
// records
type Result struct {
	Template string
	Fields   map[string]interface{}
	Lines    []map[string]interface{}
	Messages model.Messages
}

// Detect returns the first template whose keywords match the text.
// Detection is first-match by library order; when several templates
// match, the ambiguity is logged because the outcome then depends on
// ordering alone
func (e *Engine) Detect(text string) (*Template, error) {
	var matched []*Template
	for _, t := range e.Templates {
		if t.Matches(t.prepare(text)) {
			matched = append(matched, t)
		}
	}
	if len(matched) == 0 {
		return nil, &model.NoTemplateError{Tried: len(e.Templates)}
	}
	if len(matched) > 1 {
		names := make([]string, len(matched))
		for i, t := range matched {
			names[i] = t.Name
		}
		logging.WithField("templates", strings.Join(names, ", ")).
			Warn("multiple templates match, using the first by library order")
	}
	return matched[0], nil
}

// Extract runs detection, extraction and search_field resolution in one
// call
func (e *Engine) Extract(text string) (*Result, error) {
	t, err := e.Detect(text)
	if err != nil {
		return nil, err
	}
	res, err := t.Extract(text)
	if err != nil {
		return nil, err
	}
	e.resolveSearchFields(t, res)
	return res, nil
}

// prepare applies the template's input preparation options
func (t *Template) prepare(text string) string {
	if t.Options.RemoveWhitespace {
		text = whitespaceRe.ReplaceAllString(text, " ")
	}
	if t.Options.RemoveAccents {
		text = stripAccents(text)
	}
	if t.Options.Lowercase {
		text = strings.ToLower(text)
	}
	for _, pair := range t.Options.Replaces {
		text = strings.ReplaceAll(text, pair[0], pair[1])
	}
	return text
}

var whitespaceRe = regexp.MustCompile(`[ \t]+`)

// stripAccents decomposes the text and drops combining marks, so a rule
// written for "Seche-cheveux" matches "Sèche-cheveux"
func stripAccents(s string) string {
	tr := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(tr, s)
	if err != nil {
		return s
	}
	return out
}

// Extract runs every header rule and the line block against the text.
// Per-field failures are soft and recorded in Messages; missing required
// fields reject the whole parse
func (t *Template) Extract(text string) (*Result, error) {
	prepared := t.prepare(text)
	res := &Result{
		Template: t.Name,
		Fields:   map[string]interface{}{},
	}

	for name, rule := range t.Fields {
		value, err := rule.extract(prepared, t.Options, "")
		if err != nil {
			res.Messages.Add("field %s: %s", name, err.Error())
			continue
		}
		if value != nil {
			res.Fields[name] = value
		}
	}

	if t.Lines != nil {
		lines, msgs := t.Lines.extract(prepared, t.Options)
		res.Lines = lines
		res.Messages = append(res.Messages, msgs...)
	}

	var missing []string
	for _, name := range t.RequiredFields {
		if _, ok := res.Fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &model.TemplateExtractionError{Template: t.Name, Missing: missing}
	}
	return res, nil
}

// extract runs the rule pipeline against text. record is the joined line
// record when extracting a line field with a Column index
func (r *FieldRule) extract(text string, opts Options, record string) (interface{}, error) {
	var raw string
	switch {
	case r.re != nil:
		m := r.re.FindStringSubmatch(text)
		if m != nil {
			raw = strings.TrimSpace(m[1])
		}
	case r.Column != nil && record != "":
		cols := strings.Fields(record)
		if *r.Column >= 0 && *r.Column < len(cols) {
			raw = cols[*r.Column]
		}
	}

	// fixed pipeline order: post-filter, default substitution, mapping,
	// type coercion
	if raw != "" && r.filterRe != nil {
		raw = r.filterRe.FindString(raw)
	}
	if raw == "" {
		if r.Default != "" {
			raw = r.Default
		} else {
			return nil, nil
		}
	}
	if mapped, ok := r.Map[raw]; ok {
		raw = mapped
	}
	return r.coerce(raw, opts)
}

func (r *FieldRule) coerce(raw string, opts Options) (interface{}, error) {
	switch r.Type {
	case "", "str":
		return raw, nil
	case "date":
		layout := r.DateFormat
		if layout == "" {
			layout = opts.DateFormat
		}
		if layout != "" {
			t, err := time.Parse(layout, raw)
			if err != nil {
				return nil, model.NewParseError("pdftemplate", "date", "unparseable date "+raw, err)
			}
			return t, nil
		}
		t, err := model.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "float", "int":
		sep := r.DecimalSeparator
		if sep == "" {
			sep = opts.DecimalSeparator
		}
		if sep == "" {
			sep = "."
		}
		d, err := parseLocalizedDecimal(raw, sep)
		if err != nil {
			return nil, err
		}
		if r.Type == "int" {
			return d.IntPart(), nil
		}
		return d, nil
	}
	return nil, model.NewParseError("pdftemplate", "type", "unknown field type "+r.Type, nil)
}

// parseLocalizedDecimal handles locale-dependent separators with a
// two-step sentinel swap. The decimal separator becomes "|" first, every
// remaining separator character is stripped, then the sentinel becomes
// ".". Stripping "." naively would corrupt values whose thousand
// separator is also "."
func parseLocalizedDecimal(raw, decimalSep string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(raw, decimalSep, "|")
	s = thousandsRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "|", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, model.NewParseError("pdftemplate", "decimal", "unparseable number "+raw, err)
	}
	return d, nil
}

var thousandsRe = regexp.MustCompile(`[.,'’\s]`)

// extract locates the block span and groups physical lines into records
func (b *LineBlock) extract(text string, opts Options) ([]map[string]interface{}, model.Messages) {
	var msgs model.Messages

	startLoc := b.startBlockRe.FindStringIndex(text)
	if startLoc == nil {
		msgs.Add("line block start %q not found", b.StartBlock)
		return nil, msgs
	}
	rest := text[startLoc[1]:]
	endLoc := b.endBlockRe.FindStringIndex(rest)
	if endLoc == nil {
		msgs.Add("line block end %q not found", b.EndBlock)
		return nil, msgs
	}
	span := rest[:endLoc[0]]

	var records []string
	if b.startRe == nil {
		for _, line := range strings.Split(span, "\n") {
			if strings.TrimSpace(line) != "" {
				records = append(records, line)
			}
		}
	} else {
		var current []string
		for _, line := range strings.Split(span, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if b.startRe.MatchString(line) {
				if len(current) > 0 {
					records = append(records, strings.Join(current, " "))
				}
				current = []string{line}
				continue
			}
			if len(current) == 0 {
				continue
			}
			current = append(current, line)
			if b.endRe != nil && b.endRe.MatchString(line) {
				records = append(records, strings.Join(current, " "))
				current = nil
			}
		}
		if len(current) > 0 {
			records = append(records, strings.Join(current, " "))
		}
	}

	var out []map[string]interface{}
	for i, record := range records {
		values := map[string]interface{}{}
		for name, rule := range b.Fields {
			v, err := rule.extract(record, opts, record)
			if err != nil {
				msgs.Add("line %d field %s: %s", i+1, name, err.Error())
				continue
			}
			if v != nil {
				values[name] = v
			}
		}
		if len(values) > 0 {
			out = append(out, values)
		}
	}
	return out, msgs
}
