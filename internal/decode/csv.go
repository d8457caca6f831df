package decode

import (
	"encoding/csv"
	"errors"
	"fmt"
	"unicode/utf8"
)

func init() {
	MustRegister("csv", DecoderFunc(decodeCSV))
}

type csvOptions struct {
	// Sep 默认为制表符，与常见的 TSV 数据集一致。
	Sep              string   `mapstructure:"sep"`
	Header           bool     `mapstructure:"header"`
	Names            []string `mapstructure:"names"`
	Comment          string   `mapstructure:"comment"`
	SkipRows         int      `mapstructure:"skip_rows"`
	LazyQuotes       bool     `mapstructure:"lazy_quotes"`
	TrimLeadingSpace bool     `mapstructure:"trim_leading_space"`
	Flexible         bool     `mapstructure:"flexible"`
}

func decodeCSV(in Input, opts Options) (any, error) {
	o := csvOptions{Sep: "\t", Header: true}
	if err := decodeOptions(opts, &o); err != nil {
		return nil, err
	}
	sep, err := singleRune("sep", o.Sep)
	if err != nil {
		return nil, err
	}
	if o.SkipRows < 0 {
		return nil, errors.New("skip_rows must not be negative")
	}

	reader := csv.NewReader(in.Reader)
	reader.Comma = sep
	reader.LazyQuotes = o.LazyQuotes
	reader.TrimLeadingSpace = o.TrimLeadingSpace
	reader.ReuseRecord = false
	if o.Flexible {
		reader.FieldsPerRecord = -1
	}
	if o.Comment != "" {
		if reader.Comment, err = singleRune("comment", o.Comment); err != nil {
			return nil, err
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if o.SkipRows > len(records) {
		o.SkipRows = len(records)
	}
	return newFrame(records[o.SkipRows:], o.Header, o.Names), nil
}

func singleRune(name, value string) (rune, error) {
	if utf8.RuneCountInString(value) != 1 {
		return 0, fmt.Errorf("%s must be a single character, got %q", name, value)
	}
	r, _ := utf8.DecodeRuneInString(value)
	return r, nil
}
