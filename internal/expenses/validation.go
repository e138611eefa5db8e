package expenses

import (
	"strings"

	"golang.org/x/text/currency"

	"github.com/expensa-app/expensa/internal/shared"
)

// ValidateInput checks an expense payload against the submission rules and
// collects every violation, not just the first.
func ValidateInput(in ExpenseInput) error {
	verr := &shared.ValidationError{}

	if !isDigits(in.RUC) || len(in.RUC) != 11 {
		verr.Add("ruc", "len", "ruc must be exactly 11 digits")
	}
	if strings.TrimSpace(in.CompanyName) == "" {
		verr.Add("company_name", "required", "company name is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		verr.Add("description", "required", "description is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		verr.Add("category", "required", "category is required")
	}
	if in.Total < 0 {
		verr.Add("total", "min", "total must be zero or greater")
	}
	if in.Retention < 0 {
		verr.Add("retention", "min", "retention must be zero or greater")
	}
	if _, err := currency.ParseISO(in.Currency); err != nil {
		verr.Add("currency", "iso4217", "currency must be a valid ISO 4217 code")
	}
	if in.Date.IsZero() {
		verr.Add("date", "required", "date is required")
	}
	if strings.TrimSpace(in.TypeDocument) == "" {
		verr.Add("type_document", "required", "document type is required")
	}
	if serieRequired[in.TypeDocument] && strings.TrimSpace(in.Serie) == "" {
		verr.Add("serie", "required_with", "serie is required for this document type")
	}
	if strings.TrimSpace(in.Files.Receipt) == "" {
		verr.Add("files.receipt", "required", "receipt file is required")
	}
	if in.Total >= suspensionCertThreshold && in.Retention == 0 && strings.TrimSpace(in.Files.SuspensionCert) == "" {
		verr.Add("files.suspension_cert", "required_with", "suspension certificate is required for totals of 1500 or more without retention")
	}

	if verr.HasViolations() {
		return verr
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
