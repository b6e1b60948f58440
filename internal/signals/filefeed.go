package signals

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FileFeed reads daily closes from per-symbol CSV files under a
// directory: <dir>/<SYMBOL>.csv with "date,close" rows, date formatted
// 2006-01-02, oldest first.
type FileFeed struct {
	dir string
}

func NewFileFeed(dir string) *FileFeed {
	return &FileFeed{dir: dir}
}

func (f *FileFeed) Closes(ctx context.Context, symbol string, start, end time.Time) ([]Close, error) {
	path := filepath.Join(f.dir, symbol+".csv")
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 2

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	closes := make([]Close, 0, len(records))
	for i, rec := range records {
		if i == 0 && rec[0] == "date" {
			continue // header
		}
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad date %q", path, i+1, rec[0])
		}
		price, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad close %q", path, i+1, rec[1])
		}
		if date.Before(start) || date.After(end) {
			continue
		}
		closes = append(closes, Close{Date: date, Price: price})
	}
	return closes, nil
}
