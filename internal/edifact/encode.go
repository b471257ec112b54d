package edifact

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/docexchange/internal/model"
)

// Encoder renders canonical documents as EDIFACT interchanges. Both
// interchange parties must carry an EDI identifier (a GLN); encoding
// fails with MissingPartyIdentifierError otherwise
type Encoder struct {
	// Release selects the message release, "96A" or "01B"
	Release   string
	Precision int32
	// Reference seeds the interchange and message reference numbers.
	// A timestamp-derived value is used when empty
	Reference string
	Syntax    Syntax
}

// NewEncoder returns a D.96A encoder with 2-digit amounts
func NewEncoder() *Encoder {
	return &Encoder{Release: "96A", Precision: 2, Syntax: DefaultSyntax}
}

// Encode renders a document according to its kind
func (e *Encoder) Encode(doc *model.Document) ([]byte, error) {
	switch doc.Kind {
	case model.KindInvoice, model.KindRefund:
		return e.EncodeInvoice(doc)
	case model.KindOrder:
		return e.EncodeOrder(doc)
	}
	return nil, &model.UnsupportedVariantError{Format: "edifact", Root: string(doc.Kind)}
}

func (e *Encoder) envelope(doc *model.Document) (sender, recipient, ref string, err error) {
	sender = doc.Company.GLN
	recipient = doc.Partner.GLN
	if sender == "" {
		return "", "", "", &model.MissingPartyIdentifierError{Party: doc.Company.Name}
	}
	if recipient == "" {
		return "", "", "", &model.MissingPartyIdentifierError{Party: doc.Partner.Name}
	}
	ref = e.Reference
	if ref == "" {
		ref = time.Now().UTC().Format("20060102150405")
	}
	return sender, recipient, ref, nil
}

func (e *Encoder) money(d decimal.Decimal) string {
	return d.StringFixed(e.Precision)
}

// EncodeInvoice renders an INVOIC message. The summary tax block is
// accumulated per (category, rate) bucket across all lines, and the UNT
// segment count is computed from the segments actually emitted
func (e *Encoder) EncodeInvoice(doc *model.Document) ([]byte, error) {
	if err := doc.CheckStructure(); err != nil {
		return nil, err
	}
	sender, recipient, ref, err := e.envelope(doc)
	if err != nil {
		return nil, err
	}

	bgmCode := "380"
	if doc.Kind == model.KindRefund {
		bgmCode = "381"
	}
	msg := []Segment{
		seg("UNH", el(ref), el("INVOIC", "D", e.Release, "UN")),
		seg("BGM", el(bgmCode), el(doc.Reference), el("9")),
	}
	msg = e.addHeader(msg, doc)

	untaxed := decimal.Zero
	buckets := map[string]*taxBucket{}
	var bucketOrder []string
	for i, line := range doc.Lines {
		if line.SectionHeader {
			continue
		}
		sub := model.LineSubtotal(line, e.Precision)
		untaxed = untaxed.Add(sub)
		msg = e.addLine(msg, i+1, line, sub, qtyInvoiced)
		for _, t := range line.Taxes {
			key := t.UNECECategCode + "|" + t.Amount.String()
			b, ok := buckets[key]
			if !ok {
				b = &taxBucket{categ: t.UNECECategCode, rate: t.Amount}
				buckets[key] = b
				bucketOrder = append(bucketOrder, key)
			}
			b.base = b.base.Add(sub)
			b.tax = b.tax.Add(sub.Mul(t.Amount).Div(decimal.NewFromInt(100)).Round(e.Precision))
		}
	}

	msg = append(msg,
		seg("UNS", el("S")),
		seg("CNT", el("2", strconv.Itoa(lineCount(doc)))),
	)
	totalTax := decimal.Zero
	for _, key := range bucketOrder {
		totalTax = totalTax.Add(buckets[key].tax)
	}
	msg = append(msg,
		seg("MOA", el("79", e.money(untaxed))),
		seg("MOA", el("176", e.money(totalTax))),
		seg("MOA", el("77", e.money(untaxed.Add(totalTax)))),
	)
	for _, key := range bucketOrder {
		b := buckets[key]
		categ := b.categ
		if categ == "" {
			categ = "S"
		}
		msg = append(msg,
			seg("TAX", el("7"), el("VAT"), el(), el(), el("", "", "", b.rate.String()), el(categ)),
			seg("MOA", el("124", e.money(b.tax))),
		)
	}
	// UNT counts every segment from UNH to UNT inclusive
	msg = append(msg, seg("UNT", el(strconv.Itoa(len(msg)+1), ref)))

	return e.wrap(msg, sender, recipient, ref), nil
}

// EncodeOrder renders an ORDERS message
func (e *Encoder) EncodeOrder(doc *model.Document) ([]byte, error) {
	if err := doc.CheckStructure(); err != nil {
		return nil, err
	}
	sender, recipient, ref, err := e.envelope(doc)
	if err != nil {
		return nil, err
	}

	msg := []Segment{
		seg("UNH", el(ref), el("ORDERS", "D", e.Release, "UN")),
		seg("BGM", el("220"), el(doc.Reference), el("9")),
	}
	msg = e.addHeader(msg, doc)

	for i, line := range doc.Lines {
		if line.SectionHeader {
			continue
		}
		msg = e.addLine(msg, i+1, line, model.LineSubtotal(line, e.Precision), qtyOrdered)
	}

	msg = append(msg,
		seg("UNS", el("S")),
		seg("CNT", el("2", strconv.Itoa(lineCount(doc)))),
	)
	msg = append(msg, seg("UNT", el(strconv.Itoa(len(msg)+1), ref)))

	return e.wrap(msg, sender, recipient, ref), nil
}

type taxBucket struct {
	categ string
	rate  decimal.Decimal
	base  decimal.Decimal
	tax   decimal.Decimal
}

func lineCount(doc *model.Document) int {
	n := 0
	for _, l := range doc.Lines {
		if !l.SectionHeader {
			n++
		}
	}
	return n
}

func (e *Encoder) addHeader(msg []Segment, doc *model.Document) []Segment {
	if !doc.IssueDate.IsZero() {
		msg = append(msg, seg("DTM", el("137", doc.IssueDate.Format("20060102"), "102")))
	}
	if !doc.DueDate.IsZero() {
		msg = append(msg, seg("DTM", el("13", doc.DueDate.Format("20060102"), "102")))
	}
	if !doc.DeliveryDate.IsZero() {
		msg = append(msg, seg("DTM", el("35", doc.DeliveryDate.Format("20060102"), "102")))
	}
	if doc.Origin != "" {
		msg = append(msg, seg("RFF", el("ON", doc.Origin)))
	}

	// An outbound invoice goes supplier to buyer, an outbound order buyer
	// to supplier
	buyer, supplier := doc.Partner, doc.Company
	if doc.Kind == model.KindOrder {
		buyer, supplier = doc.Company, doc.Partner
	}
	msg = appendNAD(msg, PartyBuyer, buyer)
	msg = appendNAD(msg, PartySupplier, supplier)
	if doc.ShipTo.GLN != "" || doc.ShipTo.Zip != "" || doc.ShipTo.Name != "" {
		msg = appendNAD(msg, PartyDelivery, doc.ShipTo)
	}
	if doc.Currency.ISO != "" {
		msg = append(msg, seg("CUX", el("2", doc.Currency.ISO, "4")))
	}
	return msg
}

func appendNAD(msg []Segment, qual PartyQualifier, party model.PartyRef) []Segment {
	msg = append(msg, seg("NAD",
		el(string(qual)),
		el(party.GLN, "", agencyGLN),
		el(),
		el(party.Name),
		el(party.Street),
		el(party.City),
		el(),
		el(party.Zip),
		el(party.CountryCode),
	))
	if party.VAT != "" {
		msg = append(msg, seg("RFF", el("VA", party.VAT)))
	}
	return msg
}

func (e *Encoder) addLine(msg []Segment, seq int, line model.DocumentLine, sub decimal.Decimal, qtyQual string) []Segment {
	lin := seg("LIN", el(strconv.Itoa(seq)), el())
	switch {
	case line.Product.Barcode != "":
		lin.Elements = append(lin.Elements, el(line.Product.Barcode, "EN"))
	case line.Product.Code != "":
		lin.Elements = append(lin.Elements, el(line.Product.Code, "SA"))
	}
	msg = append(msg, lin)

	if line.Product.Barcode != "" && line.Product.Code != "" {
		msg = append(msg, seg("PIA", el("5"), el(line.Product.Code, "SA")))
	}
	if desc := lineDescription(line); desc != "" {
		msg = append(msg, seg("IMD", el("F"), el(), el("", "", "", desc)))
	}

	unit := line.UOM.UNECECode
	if unit == "" {
		unit = "C62"
	}
	msg = append(msg,
		seg("QTY", el(qtyQual, line.Quantity.String(), unit)),
		seg("PRI", el(priNet, line.UnitPrice.StringFixed(e.Precision))),
		seg("MOA", el("203", e.money(sub))),
	)
	return msg
}

func lineDescription(line model.DocumentLine) string {
	if line.Description != "" {
		return line.Description
	}
	return line.Product.Name
}

func (e *Encoder) wrap(msg []Segment, sender, recipient, ref string) []byte {
	now := time.Now().UTC()
	all := make([]Segment, 0, len(msg)+2)
	all = append(all, seg("UNB",
		el("UNOC", "3"),
		el(sender, "14"),
		el(recipient, "14"),
		el(now.Format("060102"), now.Format("1504")),
		el(ref),
	))
	all = append(all, msg...)
	all = append(all, seg("UNZ", el("1", ref)))
	return Render(all, e.Syntax)
}
