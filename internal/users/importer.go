package users

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/expensa-app/expensa/internal/rbac"
)

// RowError reports why one spreadsheet row was skipped.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarises a bulk import run.
type ImportResult struct {
	Created int        `json:"created"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors,omitempty"`
}

// Importer creates accounts from an uploaded spreadsheet. The first sheet is
// read with the header row email|name|role|company_id|global_order|password.
type Importer struct {
	service *Service
}

// NewImporter constructs an Importer.
func NewImporter(service *Service) *Importer {
	return &Importer{service: service}
}

// ImportWorkbook parses an xlsx stream and registers one account per row.
// Rows that fail validation are reported and skipped; valid rows still commit.
func (i *Importer) ImportWorkbook(ctx context.Context, r io.Reader) (ImportResult, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("users: open workbook: %w", err)
	}
	defer book.Close()

	sheet := book.GetSheetName(0)
	if sheet == "" {
		return ImportResult{}, fmt.Errorf("users: workbook has no sheets")
	}
	rows, err := book.GetRows(sheet)
	if err != nil {
		return ImportResult{}, fmt.Errorf("users: read sheet %s: %w", sheet, err)
	}
	if len(rows) < 2 {
		return ImportResult{}, fmt.Errorf("users: sheet %s has no data rows", sheet)
	}

	cols := headerIndex(rows[0])
	for _, required := range []string{"email", "name", "role"} {
		if _, ok := cols[required]; !ok {
			return ImportResult{}, fmt.Errorf("users: missing column %q", required)
		}
	}

	var result ImportResult
	for n, row := range rows[1:] {
		line := n + 2
		input, err := rowToInput(cols, row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, RowError{Row: line, Message: err.Error()})
			continue
		}
		if _, err := i.service.CreateUser(ctx, input); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, RowError{Row: line, Message: err.Error()})
			continue
		}
		result.Created++
	}
	return result, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for idx, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	return cols
}

func cell(cols map[string]int, row []string, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func rowToInput(cols map[string]int, row []string) (CreateUserInput, error) {
	input := CreateUserInput{
		Email:    cell(cols, row, "email"),
		Name:     cell(cols, row, "name"),
		Password: cell(cols, row, "password"),
	}
	role, err := rbac.ParseRole(strings.ToUpper(cell(cols, row, "role")))
	if err != nil {
		return CreateUserInput{}, err
	}
	input.Role = role
	if raw := cell(cols, row, "company_id"); raw != "" {
		companyID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return CreateUserInput{}, fmt.Errorf("invalid company_id %q", raw)
		}
		input.CompanyID = companyID
	}
	if raw := cell(cols, row, "global_order"); raw != "" {
		order, err := strconv.Atoi(raw)
		if err != nil {
			return CreateUserInput{}, fmt.Errorf("invalid global_order %q", raw)
		}
		input.GlobalOrder = &order
	}
	return input, nil
}
