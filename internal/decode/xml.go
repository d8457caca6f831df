package decode

import (
	"github.com/beevik/etree"
)

func init() {
	MustRegister("xml", DecoderFunc(decodeXML))
}

type xmlOptions struct {
	Permissive bool `mapstructure:"permissive"`
}

func decodeXML(in Input, opts Options) (any, error) {
	var o xmlOptions
	if err := decodeOptions(opts, &o); err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = o.Permissive
	if _, err := doc.ReadFrom(in.Reader); err != nil {
		return nil, err
	}
	return doc, nil
}
