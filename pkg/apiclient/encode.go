package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// encodeBody encodes body for the effective content type ct and returns the
// content type to send. Form encodings replace ct with their own, including
// the multipart boundary.
func encodeBody(ct string, body any) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}
	if ct == "" {
		ct = DefaultContentType
	}
	media, _, err := mime.ParseMediaType(ct)
	if err != nil {
		media = strings.ToLower(strings.TrimSpace(ct))
	}

	switch media {
	case "multipart/form-data":
		fields, err := toFields(body)
		if err != nil {
			return nil, "", err
		}
		return encodeMultipart(fields)
	case "application/x-www-form-urlencoded":
		fields, err := toFields(body)
		if err != nil {
			return nil, "", err
		}
		form := url.Values{}
		for _, k := range sortedKeys(fields) {
			if v, ok := formatValue(fields[k]); ok {
				form.Add(k, v)
			}
		}
		return strings.NewReader(form.Encode()), media, nil
	case DefaultContentType:
		if s, ok := body.(string); ok {
			return strings.NewReader(s), ct, nil
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), ct, nil
	}

	switch b := body.(type) {
	case string:
		return strings.NewReader(b), ct, nil
	case []byte:
		return bytes.NewReader(b), ct, nil
	case io.Reader:
		return b, ct, nil
	}
	return nil, "", fmt.Errorf("cannot encode %T as %s", body, media)
}

func encodeMultipart(fields map[string]any) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, k := range sortedKeys(fields) {
		var err error
		switch v := fields[k].(type) {
		case []byte:
			err = writePart(w, k, k, bytes.NewReader(v))
		case io.Reader:
			err = writePart(w, k, fileName(v, k), v)
		default:
			if s, ok := formatValue(v); ok {
				err = w.WriteField(k, s)
			}
		}
		if err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writePart(w *multipart.Writer, field, name string, r io.Reader) error {
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

func fileName(r io.Reader, fallback string) string {
	if named, ok := r.(interface{ Name() string }); ok && named.Name() != "" {
		return filepath.Base(named.Name())
	}
	return fallback
}

// toFields flattens a search or form value into named entries. Maps are used
// as is; struct fields are named by their json tags and omitempty is honored.
func toFields(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	}
	if rv.Kind() != reflect.Struct {
		return cast.ToStringMapE(rv.Interface())
	}

	out := make(map[string]any)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" && opts == "" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fv := rv.Field(i)
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		out[name] = fv.Interface()
	}
	return out, nil
}

// formatValue renders a scalar for a query string or form field. Pointers are
// followed, slices are comma-joined and nil reports false.
func formatValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	switch t := rv.Interface().(type) {
	case time.Time:
		return t.Format(time.RFC3339Nano), true
	case []byte:
		return string(t), true
	case json.Number:
		return t.String(), true
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if s, ok := formatValue(rv.Index(i).Interface()); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), true
	case reflect.Map, reflect.Struct:
		data, err := json.Marshal(rv.Interface())
		return string(data), err == nil
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	}
	s, err := cast.ToStringE(rv.Interface())
	return s, err == nil
}

// PathParam renders v as an escaped URL path segment.
func PathParam(v any) string {
	s, _ := formatValue(v)
	return url.PathEscape(s)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
