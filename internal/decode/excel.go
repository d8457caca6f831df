package decode

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

func init() {
	MustRegister("excel", DecoderFunc(decodeExcel))
}

type excelOptions struct {
	Sheet    string   `mapstructure:"sheet"`
	Header   bool     `mapstructure:"header"`
	Names    []string `mapstructure:"names"`
	SkipRows int      `mapstructure:"skip_rows"`
}

// decodeExcel 读取单个工作表，默认取第一个。
func decodeExcel(in Input, opts Options) (any, error) {
	o := excelOptions{Header: true}
	if err := decodeOptions(opts, &o); err != nil {
		return nil, err
	}
	if o.SkipRows < 0 {
		return nil, errors.New("skip_rows must not be negative")
	}

	book, err := excelize.OpenReader(in.Reader)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	sheet := o.Sheet
	if sheet == "" {
		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	if idx, err := book.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}

	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if o.SkipRows > len(rows) {
		o.SkipRows = len(rows)
	}
	return newFrame(rows[o.SkipRows:], o.Header, o.Names), nil
}
