package decode

import "strconv"

// Frame 是表格解码结果：列名加按行存放的字符串单元格。
type Frame struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NumRows 返回数据行数（不含表头）。
func (f *Frame) NumRows() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// NumCols 返回列数。
func (f *Frame) NumCols() int {
	if f == nil {
		return 0
	}
	return len(f.Columns)
}

// Column 返回指定列的全部取值。
func (f *Frame) Column(name string) ([]string, bool) {
	if f == nil {
		return nil, false
	}
	idx := -1
	for i, col := range f.Columns {
		if col == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, true
}

// newFrame 根据 header 选项拆分表头；无表头时列名为 0..n-1。
func newFrame(records [][]string, header bool, names []string) *Frame {
	frame := &Frame{}
	if header && len(records) > 0 {
		frame.Columns = records[0]
		records = records[1:]
	}
	if len(names) > 0 {
		frame.Columns = names
	}
	width := len(frame.Columns)
	for _, row := range records {
		if len(row) > width {
			width = len(row)
		}
	}
	for i := len(frame.Columns); i < width; i++ {
		frame.Columns = append(frame.Columns, strconv.Itoa(i))
	}
	frame.Rows = make([][]string, 0, len(records))
	for _, row := range records {
		for len(row) < width {
			row = append(row, "")
		}
		frame.Rows = append(frame.Rows, row)
	}
	return frame
}
