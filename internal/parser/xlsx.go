package parser

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseXLSX renders each sheet as a paragraph headed by its name, one row
// per line with cells separated by " | ".
func parseXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sheets []string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return "", err
		}

		var b strings.Builder
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if cell = strings.TrimSpace(cell); cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) == 0 {
				continue
			}
			b.WriteString(strings.Join(cells, " | "))
			b.WriteByte('\n')
		}
		if b.Len() == 0 {
			continue
		}
		sheets = append(sheets, name+"\n"+b.String())
	}
	return strings.Join(sheets, "\n"), nil
}
