package parser

import (
	"github.com/coregx/pdfcore/internal/encoding"
)

// DecodeStream returns the decoded content of a stream, applying its
// declared filter chain in order. The result is cached on the stream.
//
// On an unrecognized filter name or corrupt filter data the stream keeps
// its encoded content, DecodeFailed is set, and the FilterError is
// returned — the stream is never silently dropped.
func DecodeStream(s *Stream) ([]byte, error) {
	if decoded, ok := s.Decoded(); ok {
		return decoded, nil
	}

	names, params := filterChain(s.Dictionary())
	if len(names) == 0 {
		s.SetDecoded(s.Content())
		return s.Content(), nil
	}

	pipeline, err := encoding.NewPipeline(names, params)
	if err != nil {
		s.DecodeFailed = true
		return nil, err
	}

	decoded, err := pipeline.Decode(s.Content())
	if err != nil {
		s.DecodeFailed = true
		return nil, err
	}

	s.SetDecoded(decoded)
	return decoded, nil
}

// EncodeStreamContent replaces a stream's decoded content, re-encoding
// through the declared filter chain (inverse stages in reverse order).
func EncodeStreamContent(s *Stream, decoded []byte) error {
	names, params := filterChain(s.Dictionary())
	if len(names) == 0 {
		s.SetContent(decoded)
		s.SetDecoded(decoded)
		return nil
	}

	pipeline, err := encoding.NewPipeline(names, params)
	if err != nil {
		return err
	}

	encoded, err := pipeline.Encode(decoded)
	if err != nil {
		return err
	}

	s.SetContent(encoded)
	s.SetDecoded(decoded)
	return nil
}

// filterChain extracts the filter names and matching decode parameters
// from a stream dictionary. /Filter may be a single name or an array of
// names; /DecodeParms (or its legacy alias /DP) pairs with it
// positionally, with null entries meaning defaults.
func filterChain(dict *Dictionary) ([]string, []encoding.Params) {
	filterObj := dict.Get("Filter")
	if filterObj == nil {
		return nil, nil
	}

	var names []string
	switch obj := filterObj.(type) {
	case *Name:
		names = []string{obj.Value()}
	case *Array:
		for i := 0; i < obj.Len(); i++ {
			if name, ok := obj.Get(i).(*Name); ok {
				names = append(names, name.Value())
			}
		}
	}

	parmsObj := dict.Get("DecodeParms")
	if parmsObj == nil {
		parmsObj = dict.Get("DP")
	}

	params := make([]encoding.Params, len(names))
	for i := range params {
		params[i] = encoding.DefaultParams()
	}

	switch obj := parmsObj.(type) {
	case *Dictionary:
		if len(params) > 0 {
			params[0] = paramsFromDict(obj)
		}
	case *Array:
		for i := 0; i < obj.Len() && i < len(params); i++ {
			if d, ok := obj.Get(i).(*Dictionary); ok {
				params[i] = paramsFromDict(d)
			}
		}
	}

	return names, params
}

// paramsFromDict reads the decode parameters relevant to the supported
// filters, leaving specification defaults for absent keys.
func paramsFromDict(d *Dictionary) encoding.Params {
	p := encoding.DefaultParams()
	if d.Has("Predictor") {
		p.Predictor = int(d.GetInteger("Predictor"))
	}
	if d.Has("Colors") {
		p.Colors = int(d.GetInteger("Colors"))
	}
	if d.Has("BitsPerComponent") {
		p.BitsPerComponent = int(d.GetInteger("BitsPerComponent"))
	}
	if d.Has("Columns") {
		p.Columns = int(d.GetInteger("Columns"))
	}
	if d.Has("EarlyChange") {
		p.EarlyChange = int(d.GetInteger("EarlyChange"))
	}
	return p
}
