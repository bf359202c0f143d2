package utils

import (
	"strconv"
	"strings"
)

func BuildCatalogCacheKey(limit int, category *string, minPrice, maxPrice *int64, query *string) string {
	c := ""
	if category != nil {
		c = strings.ToLower(strings.TrimSpace(*category))
	}
	mn := ""
	if minPrice != nil {
		mn = strconv.FormatInt(*minPrice, 10)
	}
	mx := ""
	if maxPrice != nil {
		mx = strconv.FormatInt(*maxPrice, 10)
	}
	q := ""
	if query != nil {
		q = strings.ToLower(strings.TrimSpace(*query))
	}

	return "listings:catalog:v1:limit=" + strconv.Itoa(limit) +
		":category=" + c +
		":min=" + mn +
		":max=" + mx +
		":q=" + q
}
