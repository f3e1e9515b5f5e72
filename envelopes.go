package nostr

import (
	"errors"
	"fmt"

	jwriter "github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

var (
	UnknownLabel        = errors.New("unknown envelope label")
	InvalidJsonEnvelope = errors.New("invalid json envelope")
)

// ParseMessage decodes a raw relay frame into one of the envelopes below.
func ParseMessage(message string) (Envelope, error) {
	if !gjson.Valid(message) {
		return nil, InvalidJsonEnvelope
	}
	arr := gjson.Parse(message)
	if !arr.IsArray() {
		return nil, InvalidJsonEnvelope
	}
	label := arr.Get("0")
	if label.Type != gjson.String {
		return nil, InvalidJsonEnvelope
	}

	var v Envelope
	switch label.Str {
	case "EVENT":
		v = &EventEnvelope{}
	case "REQ":
		v = &ReqEnvelope{}
	case "NOTICE":
		x := NoticeEnvelope("")
		v = &x
	case "EOSE":
		x := EOSEEnvelope("")
		v = &x
	case "CLOSED":
		v = &ClosedEnvelope{}
	case "CLOSE":
		x := CloseEnvelope("")
		v = &x
	default:
		return nil, fmt.Errorf("%w %q", UnknownLabel, label.Str)
	}

	if err := v.FromJSON(arr.Array()); err != nil {
		return nil, err
	}

	return v, nil
}

// Envelope is the interface for all nostr message envelopes.
type Envelope interface {
	Label() string
	FromJSON(arr []gjson.Result) error
	MarshalJSON() ([]byte, error)
	String() string
}

var (
	_ Envelope = (*EventEnvelope)(nil)
	_ Envelope = (*ReqEnvelope)(nil)
	_ Envelope = (*NoticeEnvelope)(nil)
	_ Envelope = (*EOSEEnvelope)(nil)
	_ Envelope = (*CloseEnvelope)(nil)
	_ Envelope = (*ClosedEnvelope)(nil)
)

func envelopeString(v interface{ MarshalJSON() ([]byte, error) }) string {
	j, _ := v.MarshalJSON()
	return string(j)
}

// EventEnvelope represents an EVENT message.
type EventEnvelope struct {
	SubscriptionID *string
	Event
}

func (_ EventEnvelope) Label() string  { return "EVENT" }
func (v EventEnvelope) String() string { return envelopeString(v) }

func (v *EventEnvelope) FromJSON(arr []gjson.Result) error {
	switch len(arr) {
	case 2:
		return v.Event.UnmarshalJSON([]byte(arr[1].Raw))
	case 3:
		if arr[1].Type != gjson.String {
			return fmt.Errorf("failed to decode EVENT envelope: subscription id is not a string")
		}
		subid := arr[1].Str
		v.SubscriptionID = &subid
		if !arr[2].IsObject() {
			return fmt.Errorf("failed to decode EVENT envelope: event is not an object")
		}
		return v.Event.UnmarshalJSON([]byte(arr[2].Raw))
	default:
		return fmt.Errorf("failed to decode EVENT envelope: %d items", len(arr))
	}
}

func (v EventEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["EVENT",`)
	if v.SubscriptionID != nil {
		w.String(*v.SubscriptionID)
		w.RawByte(',')
	}
	v.Event.MarshalEasyJSON(&w)
	w.RawByte(']')
	return w.BuildBytes()
}

// ReqEnvelope represents a REQ message.
type ReqEnvelope struct {
	SubscriptionID string
	Filters        []Filter
}

func (_ ReqEnvelope) Label() string  { return "REQ" }
func (v ReqEnvelope) String() string { return envelopeString(v) }

func (v *ReqEnvelope) FromJSON(arr []gjson.Result) error {
	if len(arr) < 3 {
		return fmt.Errorf("failed to decode REQ envelope: missing filters")
	}
	v.SubscriptionID = arr[1].String()

	v.Filters = make([]Filter, len(arr)-2)
	for i, filterj := range arr[2:] {
		if err := v.Filters[i].UnmarshalJSON([]byte(filterj.Raw)); err != nil {
			return fmt.Errorf("on filter: %w", err)
		}
	}

	return nil
}

func (v ReqEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["REQ",`)
	w.String(v.SubscriptionID)
	for _, filter := range v.Filters {
		w.RawByte(',')
		filter.MarshalEasyJSON(&w)
	}
	w.RawByte(']')
	return w.BuildBytes()
}

// NoticeEnvelope represents a NOTICE message.
type NoticeEnvelope string

func (_ NoticeEnvelope) Label() string  { return "NOTICE" }
func (v NoticeEnvelope) String() string { return envelopeString(v) }

func (v *NoticeEnvelope) FromJSON(arr []gjson.Result) error {
	if len(arr) < 2 {
		return fmt.Errorf("failed to decode NOTICE envelope")
	}
	*v = NoticeEnvelope(arr[1].String())
	return nil
}

func (v NoticeEnvelope) MarshalJSON() ([]byte, error) {
	return marshalLabeled("NOTICE", string(v))
}

// EOSEEnvelope represents an EOSE (End of Stored Events) message.
type EOSEEnvelope string

func (_ EOSEEnvelope) Label() string  { return "EOSE" }
func (v EOSEEnvelope) String() string { return envelopeString(v) }

func (v *EOSEEnvelope) FromJSON(arr []gjson.Result) error {
	if len(arr) < 2 {
		return fmt.Errorf("failed to decode EOSE envelope")
	}
	*v = EOSEEnvelope(arr[1].String())
	return nil
}

func (v EOSEEnvelope) MarshalJSON() ([]byte, error) {
	return marshalLabeled("EOSE", string(v))
}

// CloseEnvelope represents a CLOSE message.
type CloseEnvelope string

func (_ CloseEnvelope) Label() string  { return "CLOSE" }
func (v CloseEnvelope) String() string { return envelopeString(v) }

func (v *CloseEnvelope) FromJSON(arr []gjson.Result) error {
	if len(arr) < 2 {
		return fmt.Errorf("failed to decode CLOSE envelope")
	}
	*v = CloseEnvelope(arr[1].String())
	return nil
}

func (v CloseEnvelope) MarshalJSON() ([]byte, error) {
	return marshalLabeled("CLOSE", string(v))
}

// ClosedEnvelope represents a CLOSED message.
type ClosedEnvelope struct {
	SubscriptionID string
	Reason         string
}

func (_ ClosedEnvelope) Label() string  { return "CLOSED" }
func (v ClosedEnvelope) String() string { return envelopeString(v) }

func (v *ClosedEnvelope) FromJSON(arr []gjson.Result) error {
	if len(arr) < 3 {
		return fmt.Errorf("failed to decode CLOSED envelope")
	}
	*v = ClosedEnvelope{
		SubscriptionID: arr[1].String(),
		Reason:         arr[2].String(),
	}
	return nil
}

func (v ClosedEnvelope) MarshalJSON() ([]byte, error) {
	return marshalLabeled("CLOSED", v.SubscriptionID, v.Reason)
}

func marshalLabeled(label string, items ...string) ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawByte('[')
	w.String(label)
	for _, item := range items {
		w.RawByte(',')
		w.String(item)
	}
	w.RawByte(']')
	return w.BuildBytes()
}
