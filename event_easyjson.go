package nostr

import (
	"encoding/hex"
	"fmt"

	jlexer "github.com/mailru/easyjson/jlexer"
	jwriter "github.com/mailru/easyjson/jwriter"
)

func easyjsonDecodeEvent(in *jlexer.Lexer, out *Event) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(true)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "id":
			decodeHexField(in, "id", out.ID[:])
		case "pubkey":
			decodeHexField(in, "pubkey", out.PubKey[:])
		case "created_at":
			out.CreatedAt = Timestamp(in.Int64())
		case "kind":
			out.Kind = Kind(in.Uint16())
		case "tags":
			in.Delim('[')
			if !in.IsDelim(']') {
				out.Tags = make(Tags, 0, 7)
			} else {
				out.Tags = Tags{}
			}
			for !in.IsDelim(']') {
				var v Tag
				in.Delim('[')
				if !in.IsDelim(']') {
					v = make(Tag, 0, 5)
				} else {
					v = Tag{}
				}
				for !in.IsDelim(']') {
					v = append(v, in.String())
					in.WantComma()
				}
				in.Delim(']')
				out.Tags = append(out.Tags, v)
				in.WantComma()
			}
			in.Delim(']')
		case "content":
			out.Content = in.String()
		case "sig":
			if b := in.UnsafeBytes(); len(b) > 0 {
				decodeHexBytes(in, "sig", out.Sig[:], b)
			}
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

func decodeHexField(in *jlexer.Lexer, field string, dst []byte) {
	decodeHexBytes(in, field, dst, in.UnsafeBytes())
}

func decodeHexBytes(in *jlexer.Lexer, field string, dst []byte, b []byte) {
	if len(b) != len(dst)*2 {
		in.AddError(fmt.Errorf("%s should be %d-char hex, got %d chars", field, len(dst)*2, len(b)))
		return
	}
	if _, err := hex.Decode(dst, b); err != nil {
		in.AddError(fmt.Errorf("%s is not valid hex: %w", field, err))
	}
}

func easyjsonEncodeEvent(out *jwriter.Writer, in Event) {
	out.RawString(`{"kind":`)
	out.Int(int(in.Kind))

	if in.ID != ZeroID {
		out.RawString(`,"id":"`)
		out.RawString(hex.EncodeToString(in.ID[:]))
		out.RawByte('"')
	}

	if in.PubKey != ZeroPK {
		out.RawString(`,"pubkey":"`)
		out.RawString(hex.EncodeToString(in.PubKey[:]))
		out.RawByte('"')
	}

	out.RawString(`,"created_at":`)
	out.Int64(int64(in.CreatedAt))

	out.RawString(`,"tags":[`)
	for i, tag := range in.Tags {
		if i > 0 {
			out.RawByte(',')
		}
		out.RawByte('[')
		for j, item := range tag {
			if j > 0 {
				out.RawByte(',')
			}
			out.String(item)
		}
		out.RawByte(']')
	}
	out.RawByte(']')

	out.RawString(`,"content":`)
	out.String(in.Content)

	if in.Sig != [64]byte{} {
		out.RawString(`,"sig":"`)
		out.RawString(hex.EncodeToString(in.Sig[:]))
		out.RawByte('"')
	}

	out.RawByte('}')
}

// MarshalJSON supports json.Marshaler interface
func (v Event) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	easyjsonEncodeEvent(&w, v)
	return w.Buffer.BuildBytes(), w.Error
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v Event) MarshalEasyJSON(w *jwriter.Writer) {
	w.NoEscapeHTML = true
	easyjsonEncodeEvent(w, v)
}

// UnmarshalJSON supports json.Unmarshaler interface
func (v *Event) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	easyjsonDecodeEvent(&r, v)
	return r.Error()
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler interface
func (v *Event) UnmarshalEasyJSON(l *jlexer.Lexer) {
	easyjsonDecodeEvent(l, v)
}
