package importer

import (
	"encoding/csv"
	"fmt"
	"io"

	"homeledger/internal/core"
)

// ReadCSV parses a statement export with date, amount and description
// columns, in that order. A header row is detected by its unparseable date
// and skipped. Amounts accept either '.' or ',' as the decimal separator.
func ReadCSV(r io.Reader) ([]Line, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var lines []Line
	rowNum := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read statement csv: %w", err)
		}
		rowNum++
		if len(record) < 3 {
			return nil, fmt.Errorf("%w: row %d has %d columns, want 3", core.ErrValidation, rowNum, len(record))
		}

		date, err := core.ParseDate(record[0])
		if err != nil {
			if rowNum == 1 {
				// header row
				continue
			}
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		amount, err := core.ParseMoney(record[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}

		lines = append(lines, Line{Date: date, Amount: amount, Description: record[2]})
	}
	return lines, nil
}
