package survey

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

type xlsxReader struct{}

func (xlsxReader) CanRead(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".xlsx")
}

func (xlsxReader) Read(path string, opt ReadOptions) (*Dataset, *Metadata, error) {
	ds, err := ReadXLSX(path, opt)
	if err != nil {
		return nil, nil, err
	}
	md, err := LoadMetadata(MetadataPathFor(path, opt))
	if err != nil {
		return nil, nil, err
	}
	return ds, md, nil
}

// ReadXLSX loads a respondent sheet; the first row is the header.
func ReadXLSX(path string, opt ReadOptions) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := opt.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q not found in workbook %q (available: %s): %w",
			sheet, filepath.Base(path), strings.Join(f.GetSheetList(), ", "), err)
	}
	if len(rows) == 0 {
		return NewDataset(datasetName(path), nil, nil)
	}
	return NewDataset(datasetName(path), rows[0], rows[1:])
}
