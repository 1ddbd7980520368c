package survey

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrBadMetadata is returned for metadata documents that are not valid JSON.
var ErrBadMetadata = errors.New("invalid metadata document")

// LoadMetadata reads a metadata JSON document from disk.
func LoadMetadata(path string) (*Metadata, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	md, err := ParseMetadata(b)
	if err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	return md, nil
}

// ParseMetadata decodes the reader's metadata document:
//
//	{"column_names_to_labels": {code: label},
//	 "variable_value_labels": {code: {value: label} | "{1: 'label'}"}}
//
// Value maps keep the key order of the document.
func ParseMetadata(b []byte) (*Metadata, error) {
	if !gjson.ValidBytes(b) {
		return nil, ErrBadMetadata
	}
	md := NewMetadata()
	gjson.GetBytes(b, "column_names_to_labels").ForEach(func(k, v gjson.Result) bool {
		md.SetLabel(k.String(), v.String())
		return true
	})
	var perr error
	gjson.GetBytes(b, "variable_value_labels").ForEach(func(k, v gjson.Result) bool {
		code := k.String()
		switch {
		case v.IsObject():
			vm := NewValueMap()
			v.ForEach(func(vk, vl gjson.Result) bool {
				n, err := strconv.ParseFloat(strings.TrimSpace(vk.String()), 64)
				if err != nil || n != float64(int(n)) {
					perr = fmt.Errorf("%s: non-integer value code %q", code, vk.String())
					return false
				}
				vm.Set(int(n), vl.String())
				return true
			})
			md.SetValues(code, vm)
		case v.Type == gjson.String:
			vm, err := ParseValueMap(v.String())
			if err != nil {
				perr = fmt.Errorf("%s: %w", code, err)
				return false
			}
			md.SetValues(code, vm)
		}
		return perr == nil
	})
	if perr != nil {
		return nil, perr
	}
	return md, nil
}
