package recon

import "github.com/mkelleher/buywrite/internal/models"

// RowBuilder accumulates ledger rows keyed by row key, in first-seen order.
// A key is the ticker symbol, or ticker+"*" for the write leg of a rollover.
// Legs for the same key merge into one row: scalar columns are overwritten
// by the most recent leg, accumulator columns sum, and a later leg never
// blanks a column an earlier leg populated.
type RowBuilder struct {
	rows  map[string]*models.LedgerRow
	order []string
}

// NewRowBuilder creates an empty builder.
func NewRowBuilder() *RowBuilder {
	return &RowBuilder{rows: make(map[string]*models.LedgerRow)}
}

// Row returns the row for key, creating it on first use. ticker is the plain
// symbol recorded in the ticker column for both regular and rollover keys.
func (b *RowBuilder) Row(key, ticker string) *models.LedgerRow {
	if row, ok := b.rows[key]; ok {
		return row
	}
	row := &models.LedgerRow{Key: key, Ticker: ticker}
	b.rows[key] = row
	b.order = append(b.order, key)
	return row
}

// Get returns the row for key without creating it.
func (b *RowBuilder) Get(key string) (*models.LedgerRow, bool) {
	row, ok := b.rows[key]
	return row, ok
}

// TickerRows returns every row whose ticker column matches, so a rollover's
// two rows both count toward their ticker.
func (b *RowBuilder) TickerRows(ticker string) []*models.LedgerRow {
	var matched []*models.LedgerRow
	for _, key := range b.order {
		if b.rows[key].Ticker == ticker {
			matched = append(matched, b.rows[key])
		}
	}
	return matched
}

// Rows returns the accumulated rows in first-seen order.
func (b *RowBuilder) Rows() []models.LedgerRow {
	rows := make([]models.LedgerRow, 0, len(b.order))
	for _, key := range b.order {
		rows = append(rows, *b.rows[key])
	}
	return rows
}

// Len returns the number of accumulated rows.
func (b *RowBuilder) Len() int {
	return len(b.order)
}
