package domain

import (
	"strconv"
	"strings"
)

// FlexID is an identifier that clients send either as a JSON number or as
// a numeric string. Anything else, including null and fractions, decodes
// to zero so validation reports the field as missing.
type FlexID int64

func (f *FlexID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexID(n)
	return nil
}

func (f FlexID) Int64() int64 {
	return int64(f)
}
