package utils

import (
	"fmt"
	"net/url"
)

// UrlQuery escapes s for use as a query parameter value.
func UrlQuery(s string) string { return url.QueryEscape(s) }

func Str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
