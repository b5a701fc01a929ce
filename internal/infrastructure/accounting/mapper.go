package accounting

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/billsync/internal/domain/invoicing"
)

const (
	lineItemTypeCustom  = "custom"
	defaultUnitName     = "Stück"
	taxTypeNet          = "net"
	shippingTypeService = "service"
	defaultCountryCode  = "DE"
)

// ContactFromParty builds the contact payload for a local party: a company
// contact when the party has an organization name, a person contact otherwise.
func ContactFromParty(party invoicing.Party) (ContactPayload, error) {
	if err := party.Validate(); err != nil {
		return ContactPayload{}, err
	}

	var payload ContactPayload
	if party.IsCompany() {
		payload = NewCompanyContact(CompanyContact{
			Name: party.DisplayName(),
		})
	} else {
		payload = NewPersonContact(PersonContact{
			FirstName: strings.TrimSpace(party.FirstName),
			LastName:  personLastName(party),
		})
	}

	if email := strings.TrimSpace(party.Email); email != "" {
		payload.EmailAddresses = &EmailAddresses{Business: []string{email}}
	}
	if party.Street != "" || party.Zip != "" || party.City != "" {
		country := strings.ToUpper(strings.TrimSpace(party.CountryCode))
		if country == "" {
			country = defaultCountryCode
		}
		payload.Addresses = &Addresses{Billing: []Address{{
			Street:      party.Street,
			Zip:         party.Zip,
			City:        party.City,
			CountryCode: country,
		}}}
	}
	payload.Note = fmt.Sprintf("%s:%s", party.Type, party.ID)

	return payload, nil
}

// personLastName falls back to the first name for single-name profiles
func personLastName(party invoicing.Party) string {
	if last := strings.TrimSpace(party.LastName); last != "" {
		return last
	}
	return strings.TrimSpace(party.FirstName)
}

// InvoicePayload builds the create-invoice body for inv addressed to contactID
func InvoicePayload(inv *invoicing.Invoice, contactID string) VoucherPayload {
	payload := voucherPayload(inv.Title, inv.Description, inv.Number, inv.LineItems, inv.Currency, inv.IssueDate, contactID)
	payload.PaymentConditions = &PaymentConditions{
		PaymentTermLabel:    fmt.Sprintf("Payable within %d days", invoicing.PaymentTermDays),
		PaymentTermDuration: invoicing.PaymentTermDays,
	}
	return payload
}

// QuotationPayload builds the create-quotation body for q addressed to contactID
func QuotationPayload(q *invoicing.Quotation, contactID string) VoucherPayload {
	payload := voucherPayload(q.Title, q.Description, q.Number, q.LineItems, q.Currency, q.IssueDate, contactID)
	expires := q.IssueDate.AddDate(0, 0, invoicing.PaymentTermDays)
	if q.ValidUntil != nil {
		expires = *q.ValidUntil
	}
	payload.ExpirationDate = formatVoucherDate(expires)
	return payload
}

func voucherPayload(title, description, number string, items []invoicing.LineItem, currency string, issueDate time.Time, contactID string) VoucherPayload {
	return VoucherPayload{
		VoucherDate:   formatVoucherDate(issueDate),
		Address:       VoucherAddress{ContactID: contactID},
		LineItems:     VoucherLineItems(items, currency),
		TotalPrice:    TotalPriceRequest{Currency: currency},
		TaxConditions: TaxConditions{TaxType: taxTypeNet},
		ShippingConditions: &ShippingConditions{
			ShippingDate: formatVoucherDate(issueDate),
			ShippingType: shippingTypeService,
		},
		Title:        title,
		Introduction: description,
		Remark:       number,
	}
}

// VoucherLineItems maps local line items to custom voucher positions with net unit prices
func VoucherLineItems(items []invoicing.LineItem, currency string) []VoucherLineItem {
	result := make([]VoucherLineItem, 0, len(items))
	for _, item := range items {
		unit := strings.TrimSpace(item.Unit)
		if unit == "" {
			unit = defaultUnitName
		}
		result = append(result, VoucherLineItem{
			Type:        lineItemTypeCustom,
			Name:        item.Name,
			Description: item.Description,
			Quantity:    NewAmount(item.Quantity),
			UnitName:    unit,
			UnitPrice: UnitPrice{
				Currency:          currency,
				NetAmount:         NewAmount(item.UnitPrice),
				TaxRatePercentage: NewAmount(item.TaxRate),
			},
		})
	}
	return result
}

func formatVoucherDate(t time.Time) string {
	return t.Format(voucherDateLayout)
}
