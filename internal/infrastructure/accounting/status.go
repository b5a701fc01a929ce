package accounting

import (
	"strings"

	"github.com/erp/billsync/internal/domain/invoicing"
)

// Voucher status values used by the platform
const (
	VoucherStatusDraft    = "draft"
	VoucherStatusOpen     = "open"
	VoucherStatusPaid     = "paid"
	VoucherStatusPaidOff  = "paidoff"
	VoucherStatusOverdue  = "overdue"
	VoucherStatusVoided   = "voided"
	VoucherStatusAccepted = "accepted"
	VoucherStatusRejected = "rejected"
)

// ---------------------------------------------------------------------------
// Status Mapping
// ---------------------------------------------------------------------------

// MapInvoiceStatus maps a platform voucher status to the local invoice status.
// Unknown values map to draft.
func MapInvoiceStatus(status string) invoicing.InvoiceStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case VoucherStatusDraft:
		return invoicing.InvoiceStatusDraft
	case VoucherStatusOpen:
		return invoicing.InvoiceStatusSent
	case VoucherStatusPaid, VoucherStatusPaidOff:
		return invoicing.InvoiceStatusPaid
	case VoucherStatusOverdue:
		return invoicing.InvoiceStatusOverdue
	case VoucherStatusVoided:
		return invoicing.InvoiceStatusCancelled
	default:
		return invoicing.InvoiceStatusDraft
	}
}

// MapToVoucherInvoiceStatus maps a local invoice status to the platform vocabulary
func MapToVoucherInvoiceStatus(status invoicing.InvoiceStatus) string {
	switch status {
	case invoicing.InvoiceStatusDraft:
		return VoucherStatusDraft
	case invoicing.InvoiceStatusSent:
		return VoucherStatusOpen
	case invoicing.InvoiceStatusPaid:
		return VoucherStatusPaid
	case invoicing.InvoiceStatusOverdue:
		return VoucherStatusOverdue
	case invoicing.InvoiceStatusCancelled:
		return VoucherStatusVoided
	default:
		return VoucherStatusDraft
	}
}

// MapQuotationStatus maps a platform voucher status to the local quotation status.
// Unknown values map to draft.
func MapQuotationStatus(status string) invoicing.QuotationStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case VoucherStatusDraft:
		return invoicing.QuotationStatusDraft
	case VoucherStatusOpen:
		return invoicing.QuotationStatusSent
	case VoucherStatusAccepted:
		return invoicing.QuotationStatusAccepted
	case VoucherStatusRejected:
		return invoicing.QuotationStatusRejected
	case VoucherStatusVoided:
		return invoicing.QuotationStatusCancelled
	default:
		return invoicing.QuotationStatusDraft
	}
}

// MapToVoucherQuotationStatus maps a local quotation status to the platform vocabulary
func MapToVoucherQuotationStatus(status invoicing.QuotationStatus) string {
	switch status {
	case invoicing.QuotationStatusDraft:
		return VoucherStatusDraft
	case invoicing.QuotationStatusSent:
		return VoucherStatusOpen
	case invoicing.QuotationStatusAccepted:
		return VoucherStatusAccepted
	case invoicing.QuotationStatusRejected:
		return VoucherStatusRejected
	case invoicing.QuotationStatusCancelled:
		return VoucherStatusVoided
	default:
		return VoucherStatusDraft
	}
}
