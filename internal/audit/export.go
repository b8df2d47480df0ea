package audit

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

// Exporter renders audit entries for download.
type Exporter struct{}

// NewExporter builds an Exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// WriteCSV renders entries as CSV with a header row. Entries whose product
// has been deleted keep their product id.
func (e *Exporter) WriteCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "created_at", "product_id", "action", "actor", "details"}); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		productID := ""
		if entry.ProductID != nil {
			productID = strconv.FormatInt(*entry.ProductID, 10)
		}
		record := []string{
			strconv.FormatInt(entry.ID, 10),
			entry.CreatedAt.UTC().Format(time.RFC3339),
			productID,
			string(entry.Action),
			entry.Actor,
			string(entry.Details),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
