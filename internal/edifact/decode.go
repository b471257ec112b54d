package edifact

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/docexchange/internal/logging"
	"github.com/rezonia/docexchange/internal/model"
)

// Decode parses an EDIFACT interchange into the canonical document model.
// INVOIC and ORDERS are supported in the D.96A and D.01B releases; any
// other message type is an UnsupportedVariantError. Unknown qualifiers
// are logged and skipped, structural violations (missing envelope, wrong
// UNT count, a LIN group without its QTY/PRI companions) are fatal
func Decode(data []byte) (*model.Document, error) {
	segments, _, err := Tokenize(data)
	if err != nil {
		return nil, err
	}

	unh := -1
	unt := -1
	for i, s := range segments {
		if s.Tag == "UNH" && unh < 0 {
			unh = i
		}
		if s.Tag == "UNT" {
			unt = i
		}
	}
	if unh < 0 {
		return nil, &model.MalformedInterchangeError{Segment: "UNH", Message: "message header missing"}
	}
	if unt < 0 {
		return nil, &model.MalformedInterchangeError{Segment: "UNT", Message: "message trailer missing"}
	}

	// The UNT count covers every segment from UNH to UNT inclusive.
	// Downstream validators reject interchanges with a wrong count, so an
	// inbound mismatch means truncation or corruption
	declared, convErr := strconv.Atoi(segments[unt].comp(0, 0))
	actual := unt - unh + 1
	if convErr != nil || declared != actual {
		return nil, &model.MalformedInterchangeError{
			Segment: "UNT",
			Message: "segment count " + segments[unt].comp(0, 0) +
				" does not match the actual count " + strconv.Itoa(actual),
		}
	}

	msgType := segments[unh].comp(1, 0)
	release := segments[unh].comp(1, 1) + segments[unh].comp(1, 2)
	var kind model.DocKind
	switch msgType {
	case "INVOIC":
		kind = model.KindInvoice
	case "ORDERS":
		kind = model.KindOrder
	case "DESADV":
		kind = model.KindDespatchAdvice
	default:
		return nil, &model.UnsupportedVariantError{Format: "edifact", Root: msgType}
	}
	switch release {
	case "D96A", "D01B", "":
	default:
		logging.WithField("release", release).Debug("unlisted message release, parsing anyway")
	}

	doc := &model.Document{Kind: kind}
	d := &decoder{doc: doc, kind: kind}

	body := segments[unh+1 : unt]
	detailStart := len(body)
	for i, s := range body {
		if s.Tag == "LIN" {
			detailStart = i
			break
		}
	}
	summaryStart := len(body)
	for i := detailStart; i < len(body); i++ {
		if body[i].Tag == "UNS" {
			summaryStart = i
			break
		}
	}

	for _, s := range body[:detailStart] {
		d.header(s)
	}
	if err := d.lines(body[detailStart:summaryStart]); err != nil {
		return nil, err
	}
	for _, s := range body[summaryStart:] {
		d.summary(s)
	}
	d.finish(segments)

	if err := doc.CheckStructure(); err != nil {
		return nil, err
	}
	return doc, nil
}

type decoder struct {
	doc  *model.Document
	kind model.DocKind
	// party is the NAD context: a following RFF or CTA applies to it
	party *model.PartyRef
	// tax buckets accumulated from the summary section
	buckets []model.TaxRef
}

func (d *decoder) header(s Segment) {
	switch s.Tag {
	case "BGM":
		d.doc.Reference = s.comp(1, 0)
		if s.comp(0, 0) == "381" {
			d.doc.Kind = model.KindRefund
		}
	case "NAD":
		d.nad(s)
	case "RFF":
		d.rff(s)
	case "DTM":
		d.dtm(s)
	case "CUX":
		if s.comp(0, 0) == "2" {
			d.doc.Currency = model.CurrencyRef{ISO: s.comp(0, 1)}
		}
	case "FTX":
		if t := s.comp(3, 0); t != "" {
			d.doc.Notes = append(d.doc.Notes, t)
		}
	case "PAI", "CTA", "COM", "PAT", "ALI", "IMD", "MEA", "TOD", "LOC":
		// known but unused at header level
	default:
		logging.WithField("tag", s.Tag).Debug("skipping unmapped header segment")
	}
}

// nad routes a party segment to the document slot matching its qualifier
// and the message direction: an invoice comes from the supplier, an order
// from the buyer
func (d *decoder) nad(s Segment) {
	qual, ok := parsePartyQualifier(s.comp(0, 0))
	if !ok {
		logging.WithField("qualifier", s.comp(0, 0)).Debug("skipping NAD with unmapped party qualifier")
		return
	}
	var target *model.PartyRef
	inbound := d.kind == model.KindOrder || d.kind == model.KindRFQ
	switch qual {
	case PartyBuyer:
		if inbound {
			target = &d.doc.Partner
		} else {
			target = &d.doc.Company
		}
	case PartySupplier:
		if inbound {
			target = &d.doc.Company
		} else {
			target = &d.doc.Partner
		}
	case PartyDelivery:
		target = &d.doc.ShipTo
	case PartyInvoicee:
		target = &d.doc.InvoiceTo
	}

	id := s.comp(1, 0)
	agency := s.comp(1, 2)
	if id != "" {
		if agency == agencyGLN || agency == "" {
			target.GLN = id
			target.IDNumbers = append(target.IDNumbers, model.IDNumber{Value: id, SchemeID: "0088"})
		} else {
			target.EDICode = id
			target.IDNumbers = append(target.IDNumbers, model.IDNumber{Value: id, SchemeID: agency})
		}
	}
	if name := s.comp(3, 0); name != "" {
		target.Name = name
	}
	if street := s.comp(4, 0); street != "" {
		target.Street = street
	}
	if city := s.comp(5, 0); city != "" {
		target.City = city
	}
	if zip := s.comp(7, 0); zip != "" {
		target.Zip = zip
	}
	if country := s.comp(8, 0); country != "" {
		target.CountryCode = country
	}
	d.party = target
}

func (d *decoder) rff(s Segment) {
	qual, ok := parseRefQualifier(s.comp(0, 0))
	if !ok {
		logging.WithField("qualifier", s.comp(0, 0)).Debug("skipping RFF with unmapped reference qualifier")
		return
	}
	value := s.comp(0, 1)
	if value == "" {
		return
	}
	switch qual {
	case RefOrderNumber:
		d.doc.Origin = value
	case RefVATNumber:
		vat := model.CleanVAT(value)
		if !model.IsPlausibleVAT(vat) {
			d.doc.Warn("the VAT number %q is not structurally valid and was discarded", value)
			return
		}
		if d.party != nil {
			d.party.VAT = vat
		} else {
			d.doc.Partner.VAT = vat
		}
	case RefCustomerRef:
		if d.party != nil {
			d.party.Ref = value
		} else {
			d.doc.Partner.Ref = value
		}
	case RefDeliveryNote:
		d.doc.Notes = append(d.doc.Notes, "Delivery note "+value)
	case RefPromotion:
		d.doc.Notes = append(d.doc.Notes, "Promotion "+value)
	case RefAccount:
		d.doc.Notes = append(d.doc.Notes, "Account reference "+value)
	}
}

func (d *decoder) dtm(s Segment) {
	qual, ok := parseDateQualifier(s.comp(0, 0))
	if !ok {
		logging.WithField("qualifier", s.comp(0, 0)).Debug("skipping DTM with unmapped date qualifier")
		return
	}
	value := s.comp(0, 1)
	layout, ok := dtmLayouts[s.comp(0, 2)]
	if !ok {
		layout = dtmLayouts["102"]
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		d.doc.Warn("unparseable date %q in DTM segment", value)
		return
	}
	switch qual {
	case DateDocument:
		d.doc.IssueDate = t
	case DateDue:
		d.doc.DueDate = t
	case DateDelivery:
		d.doc.DeliveryDate = t
	case DateDespatch:
		d.doc.DespatchDate = t
	case DateValidityStart:
		d.doc.PeriodStart = t
	case DateValidityEnd:
		d.doc.PeriodEnd = t
	case DateReference:
		// reference dates qualify the preceding RFF, nothing to keep
	}
}

// lines zips the LIN groups of the detail section. Each group must carry
// at least one QTY and one PRI; the first of each is taken. Anything else
// would silently misalign quantities and prices, so a missing companion
// segment fails the whole interchange
func (d *decoder) lines(detail []Segment) error {
	var groups [][]Segment
	for _, s := range detail {
		if s.Tag == "LIN" {
			groups = append(groups, []Segment{s})
			continue
		}
		if len(groups) == 0 {
			continue
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], s)
	}

	for i, group := range groups {
		line := model.DocumentLine{Sequence: i + 1, Quantity: decimal.NewFromInt(1)}
		lin := group[0]
		if code := lin.comp(2, 0); code != "" {
			switch lin.comp(2, 1) {
			case "EN", "EU", "UP":
				line.Product.Barcode = code
			case "SA", "BP", "IN":
				line.Product.Code = code
			default:
				line.Product.Code = code
			}
		}

		var sawQty, sawPri bool
		for _, s := range group[1:] {
			switch s.Tag {
			case "PIA":
				code := s.comp(1, 0)
				switch s.comp(1, 1) {
				case "EN", "EU", "UP":
					if line.Product.Barcode == "" {
						line.Product.Barcode = code
					}
				default:
					if line.Product.Code == "" {
						line.Product.Code = code
					}
				}
			case "IMD":
				if desc := s.comp(2, 3); desc != "" && line.Description == "" {
					line.Description = desc
				}
			case "QTY":
				switch s.comp(0, 0) {
				case qtyInvoiced, qtyOrdered, qtyDelivered:
					if sawQty {
						continue
					}
					qty, err := decimal.NewFromString(s.comp(0, 1))
					if err != nil {
						return &model.MalformedInterchangeError{
							Segment: "QTY", Message: "invalid quantity " + s.comp(0, 1),
						}
					}
					line.Quantity = qty
					if unit := s.comp(0, 2); unit != "" {
						line.UOM = model.UOMRef{UNECECode: unit}
					}
					sawQty = true
				case qtyBackorder:
					if bo, err := decimal.NewFromString(s.comp(0, 1)); err == nil {
						line.BackorderQty = bo
					}
				default:
					logging.WithField("qualifier", s.comp(0, 0)).Debug("skipping QTY with unmapped qualifier")
				}
			case "PRI":
				switch s.comp(0, 0) {
				case priNet, priGross:
					if sawPri {
						continue
					}
					price, err := decimal.NewFromString(s.comp(0, 1))
					if err != nil {
						return &model.MalformedInterchangeError{
							Segment: "PRI", Message: "invalid price " + s.comp(0, 1),
						}
					}
					line.UnitPrice = price
					sawPri = true
				default:
					logging.WithField("qualifier", s.comp(0, 0)).Debug("skipping PRI with unmapped qualifier")
				}
			case "MOA":
				if s.comp(0, 0) == "203" {
					if amt, err := decimal.NewFromString(s.comp(0, 1)); err == nil {
						line.PriceSubtotal = amt
					}
				}
			case "TAX":
				if tax, ok := parseTax(s); ok {
					line.Taxes = append(line.Taxes, tax)
				}
			case "DTM", "RFF", "ALI", "FTX":
				// tolerated inside a line group
			default:
				logging.WithField("tag", s.Tag).Debug("skipping unmapped line segment")
			}
		}

		// Despatch advices carry no prices; every other message type must
		// provide the full LIN/QTY/PRI triplet
		needPri := d.kind != model.KindDespatchAdvice
		if !sawQty || (needPri && !sawPri) {
			return &model.MalformedInterchangeError{
				Segment: "LIN",
				Message: "line " + strconv.Itoa(i+1) + " lacks its QTY/PRI companion segments",
			}
		}
		d.doc.Lines = append(d.doc.Lines, line)
	}
	return nil
}

// parseTax reads a TAX segment into a percent tax descriptor
func parseTax(s Segment) (model.TaxRef, bool) {
	rateStr := s.comp(4, 3)
	if rateStr == "" {
		return model.TaxRef{}, false
	}
	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return model.TaxRef{}, false
	}
	return model.TaxRef{
		AmountType:     "percent",
		Amount:         rate,
		UNECETypeCode:  s.comp(1, 0),
		UNECECategCode: s.comp(5, 0),
	}, true
}

func (d *decoder) summary(s Segment) {
	switch s.Tag {
	case "UNS":
	case "CNT":
		if s.comp(0, 0) == "2" {
			if n, err := strconv.Atoi(s.comp(0, 1)); err == nil && n != len(d.doc.Lines) {
				d.doc.Warn("control count %d does not match the %d parsed lines", n, len(d.doc.Lines))
			}
		}
	case "MOA":
		amt, err := decimal.NewFromString(s.comp(0, 1))
		if err != nil {
			return
		}
		switch s.comp(0, 0) {
		case "79", "125":
			d.doc.AmountUntaxed = amt
		case "176", "124":
			d.doc.AmountTax = amt
		case "77", "86", "128":
			d.doc.AmountTotal = amt
		default:
			logging.WithField("qualifier", s.comp(0, 0)).Debug("skipping MOA with unmapped qualifier")
		}
	case "TAX":
		if tax, ok := parseTax(s); ok {
			d.addBucket(tax)
		}
	default:
		logging.WithField("tag", s.Tag).Debug("skipping unmapped summary segment")
	}
}

// addBucket folds a summary tax into the per (category, rate) buckets
func (d *decoder) addBucket(tax model.TaxRef) {
	for _, b := range d.buckets {
		if b.UNECECategCode == tax.UNECECategCode && b.Amount.Equal(tax.Amount) {
			return
		}
	}
	d.buckets = append(d.buckets, tax)
}

// finish applies envelope fallbacks and spreads a single aggregate tax
// bucket over lines that carry no tax of their own. EDIFACT invoices
// report tax once in the summary, not per line
func (d *decoder) finish(segments []Segment) {
	for _, s := range segments {
		if s.Tag != "UNB" {
			continue
		}
		sender := s.comp(1, 0)
		recipient := s.comp(2, 0)
		if d.doc.Partner.GLN == "" && sender != "" {
			d.doc.Partner.GLN = sender
		}
		if d.doc.Company.GLN == "" && recipient != "" {
			d.doc.Company.GLN = recipient
		}
		break
	}

	if len(d.buckets) == 1 {
		for i := range d.doc.Lines {
			if len(d.doc.Lines[i].Taxes) == 0 {
				d.doc.Lines[i].Taxes = []model.TaxRef{d.buckets[0]}
			}
		}
	} else if len(d.buckets) > 1 {
		d.doc.Warn("%d aggregate tax rates reported, line-level tax assignment left open", len(d.buckets))
	}
}
