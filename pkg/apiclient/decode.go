package apiclient

import (
	"encoding/base64"
	"encoding/json"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// decodeWithDates decodes a JSON document into out. Timestamps are parsed
// with ParseDate wherever out expects a time.Time, and coerced inside untyped
// values at any depth.
func decodeWithDates(raw []byte, out any) error {
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: dateHook,
		Result:     out,
		TagName:    "json",
		Squash:     true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(tree)
}

// dateHook keeps the encoding/json meaning of the generated field types:
// time.Time from ISO-8601 text, []byte from base64, and untyped values as
// decoded JSON with their timestamps coerced.
func dateHook(from, to reflect.Type, data any) (any, error) {
	switch {
	case to == timeType && from.Kind() == reflect.String:
		s := data.(string)
		if t, ok := ParseDate(s); ok {
			return t, nil
		}
		return time.Parse(time.RFC3339Nano, s)
	case to == bytesType && from.Kind() == reflect.String:
		return base64.StdEncoding.DecodeString(data.(string))
	case to.Kind() == reflect.Interface:
		return PopulateDates(data), nil
	}
	return data, nil
}
