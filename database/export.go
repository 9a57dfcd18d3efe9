package database

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"
)

// CSVExporter writes query result rows as CSV.
type CSVExporter struct {
	Headers    []string // column names are used when empty
	TimeFormat string
	Delimiter  rune
}

func (c CSVExporter) Write(rows *sql.Rows, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	if c.Delimiter != 0 {
		csvWriter.Comma = c.Delimiter
	}

	columnNames, err := rows.Columns()
	if err != nil {
		return err
	}

	headers := c.Headers
	if len(headers) == 0 {
		headers = columnNames
	}
	if err = csvWriter.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	count := len(columnNames)
	values := make([]any, count)
	valuePtrs := make([]any, count)
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	for rows.Next() {
		if err = rows.Scan(valuePtrs...); err != nil {
			return err
		}

		row := make([]string, count)
		for i, value := range values {
			row[i] = c.formatValue(value)
		}

		if err = csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write data row to csv %w", err)
		}
	}

	csvWriter.Flush()
	if err = csvWriter.Error(); err != nil {
		return err
	}

	return rows.Err()
}

func (c CSVExporter) formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case time.Time:
		if c.TimeFormat != "" {
			return v.Format(c.TimeFormat)
		}
	case bool:
		if v {
			return "1"
		}
		return "0"
	}

	return fmt.Sprintf("%v", value)
}

// ExportTable writes every row in table of `model` to writer as CSV.
func ExportTable(db *gorm.DB, model any, writer io.Writer) error {
	rows, err := db.Model(model).Rows()
	if err != nil {
		return fmt.Errorf("failed to query table: %s", err)
	}
	defer rows.Close()

	return CSVExporter{TimeFormat: time.RFC3339}.Write(rows, writer)
}
