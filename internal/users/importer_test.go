package users

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)
	for n, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, n+1)
			require.NoError(t, err)
			require.NoError(t, book.SetCellValue(sheet, cell, value))
		}
	}
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportWorkbookCreatesAccounts(t *testing.T) {
	repo := newMemoryRepo()
	importer := NewImporter(NewService(repo))

	buf := workbook(t, [][]any{
		{"email", "name", "role", "company_id", "global_order", "password"},
		{"ana@acme.pe", "Ana Torres", "SUBMITTER", 1, "", "secret-pass"},
		{"luis@acme.pe", "Luis Vega", "APPROVER", 1, "", "secret-pass"},
	})

	result, err := importer.ImportWorkbook(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)
	require.Zero(t, result.Skipped)
	require.Empty(t, result.Errors)
	require.Len(t, repo.users, 2)
}

func TestImportWorkbookSkipsBadRows(t *testing.T) {
	repo := newMemoryRepo()
	importer := NewImporter(NewService(repo))

	buf := workbook(t, [][]any{
		{"email", "name", "role", "password"},
		{"ana@acme.pe", "Ana Torres", "SUBMITTER", "secret-pass"},
		{"broken", "No Role", "CEO", "secret-pass"},
		{"short@acme.pe", "Short Pass", "SUBMITTER", "tiny"},
	})

	result, err := importer.ImportWorkbook(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 2, result.Skipped)
	require.Len(t, result.Errors, 2)
	require.Equal(t, 3, result.Errors[0].Row)
	require.Equal(t, 4, result.Errors[1].Row)
}

func TestImportWorkbookRequiresHeader(t *testing.T) {
	repo := newMemoryRepo()
	importer := NewImporter(NewService(repo))

	buf := workbook(t, [][]any{
		{"email", "name"},
		{"ana@acme.pe", "Ana Torres"},
	})

	_, err := importer.ImportWorkbook(context.Background(), buf)
	require.ErrorContains(t, err, `missing column "role"`)
}

func TestImportWorkbookRejectsNonWorkbook(t *testing.T) {
	repo := newMemoryRepo()
	importer := NewImporter(NewService(repo))

	_, err := importer.ImportWorkbook(context.Background(), strings.NewReader("not a workbook"))
	require.Error(t, err)
}
