package decode

import (
	"github.com/goccy/go-json"
)

func init() {
	MustRegister("json", DecoderFunc(decodeJSON))
}

type jsonOptions struct {
	UseNumber bool `mapstructure:"use_number"`
}

func decodeJSON(in Input, opts Options) (any, error) {
	var o jsonOptions
	if err := decodeOptions(opts, &o); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(in.Reader)
	if o.UseNumber {
		dec.UseNumber()
	}
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}
