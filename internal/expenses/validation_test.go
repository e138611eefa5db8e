package expenses

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/expensa-app/expensa/internal/shared"
)

func validInput() ExpenseInput {
	return ExpenseInput{
		RUC:          "20100070970",
		CompanyName:  "Supermercados Peruanos SA",
		Description:  "Almuerzo con cliente",
		Category:     "MEALS",
		Total:        120.50,
		Retention:    0,
		Currency:     "PEN",
		Date:         time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC),
		TypeDocument: DocBoleta,
		Serie:        "B001-12345",
		Files:        FileRefs{Receipt: "https://files.internal/receipts/abc.pdf"},
	}
}

func TestValidateInputAccepts(t *testing.T) {
	require.NoError(t, ValidateInput(validInput()))
}

func TestValidateInputCollectsAllViolations(t *testing.T) {
	in := validInput()
	in.RUC = "123"
	in.Total = -5
	in.Currency = "soles"
	in.Files.Receipt = ""

	err := ValidateInput(in)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)

	fields := make(map[string]bool)
	for _, v := range verr.Violations {
		fields[v.Field] = true
	}
	require.True(t, fields["ruc"])
	require.True(t, fields["total"])
	require.True(t, fields["currency"])
	require.True(t, fields["files.receipt"])
	require.Len(t, verr.Violations, 4)
}

func TestValidateInputSerieRequiredByDocumentType(t *testing.T) {
	in := validInput()
	in.Serie = ""
	err := ValidateInput(in)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "serie", verr.Violations[0].Field)

	in.TypeDocument = DocTicket
	require.NoError(t, ValidateInput(in))
}

func TestValidateInputSuspensionCertificate(t *testing.T) {
	in := validInput()
	in.TypeDocument = DocRecibo
	in.Serie = ""
	in.Total = 1500
	in.Retention = 0

	err := ValidateInput(in)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "files.suspension_cert", verr.Violations[0].Field)

	// Either a retention or the certificate satisfies the rule.
	in.Retention = 120
	require.NoError(t, ValidateInput(in))

	in.Retention = 0
	in.Files.SuspensionCert = "https://files.internal/certs/susp.pdf"
	require.NoError(t, ValidateInput(in))

	// Below the threshold no certificate is needed.
	in.Files.SuspensionCert = ""
	in.Total = 1499.99
	require.NoError(t, ValidateInput(in))
}
