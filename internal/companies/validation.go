package companies

import (
	"strings"

	"github.com/expensa-app/expensa/internal/shared"
)

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func (s *Service) validate(c Company) error {
	verr := &shared.ValidationError{}
	if strings.TrimSpace(c.Code) == "" {
		verr.Add("code", "required", "company code is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		verr.Add("name", "required", "company name is required")
	}
	if c.RUC != "" && (len(c.RUC) != 11 || !isDigits(c.RUC)) {
		verr.Add("ruc", "len", "RUC must be 11 digits")
	}
	if verr.HasViolations() {
		return verr
	}
	return nil
}
