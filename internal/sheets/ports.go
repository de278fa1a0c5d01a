package sheets

import "context"

// Store abstracts the remote spreadsheet backend. A spreadsheet holds
// monthly tabs; tabs are created lazily and are append-only afterwards.
type Store interface {
	// SheetTitles lists the tab names currently present in the spreadsheet.
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)

	// CreateSheet adds a new empty tab.
	CreateSheet(ctx context.Context, spreadsheetID, name string) error

	// WriteHeader writes the header row of a freshly created tab.
	WriteHeader(ctx context.Context, spreadsheetID, name string, headers []string) error

	// AppendRows appends rows after the last data row of the tab and
	// returns the 1-based row number of the first appended row.
	AppendRows(ctx context.Context, spreadsheetID, name string, rows [][]any) (int64, error)

	// ReadRows returns up to maxRows data rows of the tab (header excluded),
	// each cell rendered as a string. A missing tab yields no rows.
	ReadRows(ctx context.Context, spreadsheetID, name string, maxRows int) ([][]string, error)
}

// HeaderColumns is the fixed column layout of every monthly tab.
var HeaderColumns = []string{
	"Date",
	"Store name",
	"Payer",
	"Amount (tax excluded)",
	"Amount (tax included)",
	"Tax",
	"Payment method",
	"Expense category",
	"Project / client name",
	"Notes",
	"Receipt image URL",
}
