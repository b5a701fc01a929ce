package accounting

import (
	"github.com/shopspring/decimal"
)

// voucherDateLayout is the timestamp format the platform uses for voucher dates
const voucherDateLayout = "2006-01-02T15:04:05.000Z07:00"

// Amount is a decimal that encodes as a bare JSON number
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// MarshalJSON encodes the amount without quotes
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts quoted and bare numbers
func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}

// ResourceReference is returned by every create call
type ResourceReference struct {
	ID          string `json:"id"`
	ResourceURI string `json:"resourceUri"`
	CreatedDate string `json:"createdDate"`
	UpdatedDate string `json:"updatedDate"`
	Version     int    `json:"version"`
}

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

// ContactKind discriminates the two contact shapes
type ContactKind string

const (
	ContactKindPerson  ContactKind = "person"
	ContactKindCompany ContactKind = "company"
)

// ContactPayload is the body of POST /v1/contacts. Exactly one of Person and
// Company is set; build it with NewPersonContact or NewCompanyContact.
type ContactPayload struct {
	Version        int             `json:"version"`
	Roles          ContactRoles    `json:"roles"`
	Person         *PersonContact  `json:"person,omitempty" validate:"required_without=Company,excluded_with=Company"`
	Company        *CompanyContact `json:"company,omitempty" validate:"required_without=Person"`
	EmailAddresses *EmailAddresses `json:"emailAddresses,omitempty"`
	Addresses      *Addresses      `json:"addresses,omitempty"`
	Note           string          `json:"note,omitempty"`
}

// NewPersonContact builds a customer contact for an individual
func NewPersonContact(person PersonContact) ContactPayload {
	return ContactPayload{
		Roles:  ContactRoles{Customer: &CustomerRole{}},
		Person: &person,
	}
}

// NewCompanyContact builds a customer contact for a company
func NewCompanyContact(company CompanyContact) ContactPayload {
	return ContactPayload{
		Roles:   ContactRoles{Customer: &CustomerRole{}},
		Company: &company,
	}
}

// Kind reports which variant the payload holds
func (p ContactPayload) Kind() ContactKind {
	if p.Company != nil {
		return ContactKindCompany
	}
	return ContactKindPerson
}

// ContactRoles marks the contact as customer and/or vendor
type ContactRoles struct {
	Customer *CustomerRole `json:"customer,omitempty"`
	Vendor   *VendorRole   `json:"vendor,omitempty"`
}

// CustomerRole carries the platform-assigned customer number
type CustomerRole struct {
	Number int `json:"number,omitempty"`
}

// VendorRole carries the platform-assigned vendor number
type VendorRole struct {
	Number int `json:"number,omitempty"`
}

// PersonContact is the person variant of a contact
type PersonContact struct {
	Salutation string `json:"salutation,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName" validate:"required"`
}

// CompanyContact is the company variant of a contact
type CompanyContact struct {
	Name                 string `json:"name" validate:"required"`
	TaxNumber            string `json:"taxNumber,omitempty"`
	VatRegistrationID    string `json:"vatRegistrationId,omitempty"`
	AllowTaxFreeInvoices bool   `json:"allowTaxFreeInvoices"`
}

// EmailAddresses groups contact emails by purpose
type EmailAddresses struct {
	Business []string `json:"business,omitempty" validate:"dive,email"`
}

// Addresses groups postal addresses by purpose
type Addresses struct {
	Billing []Address `json:"billing,omitempty" validate:"dive"`
}

// Address is a postal address
type Address struct {
	Street      string `json:"street,omitempty"`
	Zip         string `json:"zip,omitempty"`
	City        string `json:"city,omitempty"`
	CountryCode string `json:"countryCode" validate:"required,len=2"`
}

// Contact is a contact as returned by the platform
type Contact struct {
	ID             string          `json:"id"`
	Version        int             `json:"version"`
	Roles          ContactRoles    `json:"roles"`
	Person         *PersonContact  `json:"person,omitempty"`
	Company        *CompanyContact `json:"company,omitempty"`
	EmailAddresses *EmailAddresses `json:"emailAddresses,omitempty"`
	Archived       bool            `json:"archived"`
}

// ContactFilter narrows a contact search
type ContactFilter struct {
	Name  string
	Email string
	Page  int
	Size  int
}

// ContactPage is a page of contacts
type ContactPage struct {
	Content       []Contact `json:"content"`
	TotalPages    int       `json:"totalPages"`
	TotalElements int       `json:"totalElements"`
	Number        int       `json:"number"`
	Last          bool      `json:"last"`
}

// ---------------------------------------------------------------------------
// Vouchers (invoices and quotations)
// ---------------------------------------------------------------------------

// VoucherPayload is the body of POST /v1/invoices and POST /v1/quotations
type VoucherPayload struct {
	VoucherDate        string              `json:"voucherDate" validate:"required"`
	ExpirationDate     string              `json:"expirationDate,omitempty"`
	Address            VoucherAddress      `json:"address"`
	LineItems          []VoucherLineItem   `json:"lineItems" validate:"required,min=1,dive"`
	TotalPrice         TotalPriceRequest   `json:"totalPrice"`
	TaxConditions      TaxConditions       `json:"taxConditions"`
	PaymentConditions  *PaymentConditions  `json:"paymentConditions,omitempty"`
	ShippingConditions *ShippingConditions `json:"shippingConditions,omitempty"`
	Title              string              `json:"title,omitempty"`
	Introduction       string              `json:"introduction,omitempty"`
	Remark             string              `json:"remark,omitempty"`
}

// VoucherAddress references the recipient contact
type VoucherAddress struct {
	ContactID string `json:"contactId" validate:"required"`
	Name      string `json:"name,omitempty"`
}

// VoucherLineItem is one position of a voucher
type VoucherLineItem struct {
	Type        string    `json:"type" validate:"required,oneof=custom text"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description,omitempty"`
	Quantity    Amount    `json:"quantity"`
	UnitName    string    `json:"unitName" validate:"required"`
	UnitPrice   UnitPrice `json:"unitPrice"`
}

// UnitPrice is the net price and VAT rate of a line item
type UnitPrice struct {
	Currency          string `json:"currency" validate:"required,len=3"`
	NetAmount         Amount `json:"netAmount"`
	TaxRatePercentage Amount `json:"taxRatePercentage"`
}

// TotalPriceRequest selects the voucher currency; totals are computed by the platform
type TotalPriceRequest struct {
	Currency string `json:"currency" validate:"required,len=3"`
}

// TaxConditions selects how unit prices are interpreted
type TaxConditions struct {
	TaxType string `json:"taxType" validate:"required,oneof=net gross vatfree"`
}

// PaymentConditions describe the payment term printed on the voucher
type PaymentConditions struct {
	PaymentTermLabel    string `json:"paymentTermLabel"`
	PaymentTermDuration int    `json:"paymentTermDuration"`
}

// ShippingConditions describe the service date
type ShippingConditions struct {
	ShippingDate string `json:"shippingDate,omitempty"`
	ShippingType string `json:"shippingType" validate:"required"`
}

// Voucher is an invoice or quotation as returned by the platform
type Voucher struct {
	ID            string         `json:"id"`
	Version       int            `json:"version"`
	VoucherNumber string         `json:"voucherNumber"`
	VoucherStatus string         `json:"voucherStatus"`
	VoucherDate   string         `json:"voucherDate"`
	DueDate       string         `json:"dueDate,omitempty"`
	Address       VoucherAddress `json:"address"`
	TotalPrice    TotalPrice     `json:"totalPrice"`
	CreatedDate   string         `json:"createdDate"`
	UpdatedDate   string         `json:"updatedDate"`
}

// TotalPrice are the totals computed by the platform
type TotalPrice struct {
	Currency         string `json:"currency"`
	TotalNetAmount   Amount `json:"totalNetAmount"`
	TotalGrossAmount Amount `json:"totalGrossAmount"`
	TotalTaxAmount   Amount `json:"totalTaxAmount"`
}

// ---------------------------------------------------------------------------
// Recurring templates and profile
// ---------------------------------------------------------------------------

// RecurringTemplate is the platform's own recurring invoice definition (read-only)
type RecurringTemplate struct {
	ID                        string                    `json:"id"`
	Title                     string                    `json:"title,omitempty"`
	CreatedDate               string                    `json:"createdDate"`
	UpdatedDate               string                    `json:"updatedDate"`
	Address                   VoucherAddress            `json:"address"`
	TotalPrice                TotalPrice                `json:"totalPrice"`
	RecurringTemplateSettings RecurringTemplateSettings `json:"recurringTemplateSettings"`
}

// RecurringTemplateSettings is the cadence of a recurring template
type RecurringTemplateSettings struct {
	ID                string `json:"id"`
	StartDate         string `json:"startDate"`
	EndDate           string `json:"endDate,omitempty"`
	Frequency         string `json:"frequency"`
	NextExecutionDate string `json:"nextExecutionDate,omitempty"`
	LastExecutionDate string `json:"lastExecutionDate,omitempty"`
	ExecutionStatus   string `json:"executionStatus"`
}

// RecurringTemplatePage is a page of recurring templates
type RecurringTemplatePage struct {
	Content       []RecurringTemplate `json:"content"`
	TotalPages    int                 `json:"totalPages"`
	TotalElements int                 `json:"totalElements"`
	Number        int                 `json:"number"`
	Last          bool                `json:"last"`
}

// Profile describes the connected organization; used to check the connection
type Profile struct {
	OrganizationID string `json:"organizationId"`
	CompanyName    string `json:"companyName"`
	TaxType        string `json:"taxType"`
	SmallBusiness  bool   `json:"smallBusiness"`
}
