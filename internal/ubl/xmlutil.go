package ubl

import (
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/rezonia/docexchange/internal/model"
)

// Lookup helpers work on local names only. Real-world UBL files bind the
// cac/cbc namespaces to arbitrary prefixes (or none), so prefix-based
// matching would reject valid documents.

func child(el *etree.Element, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == local {
			return c
		}
	}
	return nil
}

func children(el *etree.Element, local string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == local {
			out = append(out, c)
		}
	}
	return out
}

// descend walks a chain of child local names, returning nil as soon as a
// link is missing
func descend(el *etree.Element, locals ...string) *etree.Element {
	for _, l := range locals {
		el = child(el, l)
		if el == nil {
			return nil
		}
	}
	return el
}

func text(el *etree.Element, locals ...string) string {
	t := descend(el, locals...)
	if t == nil {
		return ""
	}
	return strings.TrimSpace(t.Text())
}

// amount reads a decimal child element, returning zero when absent or
// unparseable. amountErr is the strict variant used where a garbled number
// must surface
func amount(el *etree.Element, locals ...string) decimal.Decimal {
	s := text(el, locals...)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func amountErr(el *etree.Element, field string, locals ...string) (decimal.Decimal, error) {
	s := text(el, locals...)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, model.NewParseError("ubl", field, "invalid amount "+s, err)
	}
	return d, nil
}

// date reads a date child element, returning the zero time when absent or
// unparseable. Dates are never load-bearing enough to abort a parse
func date(el *etree.Element, locals ...string) time.Time {
	s := text(el, locals...)
	if s == "" {
		return time.Time{}
	}
	t, err := model.ParseDate(s)
	if err != nil {
		return time.Time{}
	}
	return t
}
