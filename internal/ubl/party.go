package ubl

import (
	"github.com/beevik/etree"

	"github.com/rezonia/docexchange/internal/model"
)

// parseParty extracts a party descriptor from a cac:Party element
func parseParty(el *etree.Element) model.PartyRef {
	var ref model.PartyRef
	if el == nil {
		return ref
	}

	ref.Name = text(el, "PartyName", "Name")
	if ref.Name == "" {
		ref.Name = text(el, "PartyLegalEntity", "RegistrationName")
	}
	ref.Website = text(el, "WebsiteURI")

	if v := text(el, "PartyTaxScheme", "CompanyID"); v != "" {
		ref.VAT = model.CleanVAT(v)
	} else if v := text(el, "PartyLegalEntity", "CompanyID"); v != "" {
		ref.VAT = model.CleanVAT(v)
	}

	if ep := child(el, "EndpointID"); ep != nil {
		ref.IDNumbers = append(ref.IDNumbers, model.IDNumber{
			Value:    ep.Text(),
			SchemeID: ep.SelectAttrValue("schemeID", ""),
		})
	}
	for _, pid := range children(el, "PartyIdentification") {
		id := child(pid, "ID")
		if id == nil || id.Text() == "" {
			continue
		}
		scheme := id.SelectAttrValue("schemeID", "")
		ref.IDNumbers = append(ref.IDNumbers, model.IDNumber{
			Value:    id.Text(),
			SchemeID: scheme,
		})
		if scheme == "GLN" || scheme == "0088" {
			ref.GLN = id.Text()
		}
	}

	if contact := child(el, "Contact"); contact != nil {
		ref.Contact = text(contact, "Name")
		ref.Phone = text(contact, "Telephone")
		ref.Email = text(contact, "ElectronicMail")
	}

	parseAddress(child(el, "PostalAddress"), &ref)
	return ref
}

// parseAddress fills the postal fields of a party descriptor from a
// cac:PostalAddress or cac:Address element
func parseAddress(el *etree.Element, ref *model.PartyRef) {
	if el == nil {
		return
	}
	ref.Street = text(el, "StreetName")
	ref.Street2 = text(el, "AdditionalStreetName")
	ref.StreetNum = text(el, "BuildingNumber")
	ref.City = text(el, "CityName")
	ref.Zip = text(el, "PostalZone")
	ref.StateCode = text(el, "CountrySubentityCode")
	ref.CountryCode = text(el, "Country", "IdentificationCode")
}

// parseDelivery extracts the ship-to descriptor from a cac:Delivery element
func parseDelivery(el *etree.Element) model.PartyRef {
	var ref model.PartyRef
	if el == nil {
		return ref
	}
	if party := descend(el, "DeliveryParty"); party != nil {
		ref = parseParty(party)
	}
	if addr := descend(el, "DeliveryLocation", "Address"); addr != nil {
		parseAddress(addr, &ref)
	} else if addr := descend(el, "DeliveryAddress"); addr != nil {
		parseAddress(addr, &ref)
	}
	return ref
}

// addParty appends the children of a cac:Party element for the given
// descriptor. Child order follows the UBL schema sequence
func addParty(party *etree.Element, ref model.PartyRef) {
	if ref.Website != "" {
		party.CreateElement("cbc:WebsiteURI").SetText(ref.Website)
	}
	if ref.GLN != "" {
		pid := party.CreateElement("cac:PartyIdentification")
		id := pid.CreateElement("cbc:ID")
		id.CreateAttr("schemeID", "0088")
		id.SetText(ref.GLN)
	}
	if ref.Name != "" {
		party.CreateElement("cac:PartyName").
			CreateElement("cbc:Name").SetText(ref.Name)
	}
	addAddress(party.CreateElement("cac:PostalAddress"), ref)
	if ref.VAT != "" {
		pts := party.CreateElement("cac:PartyTaxScheme")
		pts.CreateElement("cbc:RegistrationName").SetText(ref.Name)
		pts.CreateElement("cbc:CompanyID").SetText(ref.VAT)
		pts.CreateElement("cac:TaxScheme").
			CreateElement("cbc:ID").SetText("VAT")
	}
	if ref.Name != "" {
		ple := party.CreateElement("cac:PartyLegalEntity")
		ple.CreateElement("cbc:RegistrationName").SetText(ref.Name)
	}
	if ref.Contact != "" || ref.Phone != "" || ref.Email != "" {
		contact := party.CreateElement("cac:Contact")
		if ref.Contact != "" {
			contact.CreateElement("cbc:Name").SetText(ref.Contact)
		}
		if ref.Phone != "" {
			contact.CreateElement("cbc:Telephone").SetText(ref.Phone)
		}
		if ref.Email != "" {
			contact.CreateElement("cbc:ElectronicMail").SetText(ref.Email)
		}
	}
}

// addAddress fills a cac:PostalAddress element
func addAddress(addr *etree.Element, ref model.PartyRef) {
	if ref.Street != "" {
		addr.CreateElement("cbc:StreetName").SetText(ref.Street)
	}
	if ref.Street2 != "" {
		addr.CreateElement("cbc:AdditionalStreetName").SetText(ref.Street2)
	}
	if ref.StreetNum != "" {
		addr.CreateElement("cbc:BuildingNumber").SetText(ref.StreetNum)
	}
	if ref.City != "" {
		addr.CreateElement("cbc:CityName").SetText(ref.City)
	}
	if ref.Zip != "" {
		addr.CreateElement("cbc:PostalZone").SetText(ref.Zip)
	}
	if ref.StateCode != "" {
		addr.CreateElement("cbc:CountrySubentityCode").SetText(ref.StateCode)
	}
	if ref.CountryCode != "" {
		country := addr.CreateElement("cac:Country")
		country.CreateElement("cbc:IdentificationCode").SetText(ref.CountryCode)
		country.CreateElement("cbc:Name").SetText(ref.CountryCode)
	}
}
