package invoicing

import (
	"time"

	"golang.org/x/text/language"
)

// Settings are the explicit configuration values handed to the jobs
type Settings struct {
	// PlatformEnabled gates every call to the accounting platform
	PlatformEnabled bool
	InvoicePrefix   string
	QuotationPrefix string
	// Location defines the business calendar; "today" is midnight in this zone
	Location *time.Location
	// Locale selects number formatting in notifications
	Locale language.Tag
}

// DefaultSettings returns settings with the platform disabled
func DefaultSettings() Settings {
	return Settings{
		InvoicePrefix:   "INV",
		QuotationPrefix: "QUO",
		Location:        time.UTC,
		Locale:          language.German,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.InvoicePrefix == "" {
		s.InvoicePrefix = d.InvoicePrefix
	}
	if s.QuotationPrefix == "" {
		s.QuotationPrefix = d.QuotationPrefix
	}
	if s.Location == nil {
		s.Location = d.Location
	}
	if s.Locale.IsRoot() {
		s.Locale = d.Locale
	}
	return s
}
