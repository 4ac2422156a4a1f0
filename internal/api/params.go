package api

import (
	"fmt"
	"net/url"
	"reflect"
	"time"

	"github.com/spf13/cast"

	"github.com/iTrooz/dealership-client/internal/cache/httpcache"
)

// encodeParams renders params as a query string. nil and undefined values are
// left out, slices become repeated keys.
func encodeParams(params map[string]any) (url.Values, error) {
	query := url.Values{}
	for key, value := range params {
		if value == nil || value == httpcache.Undefined {
			continue
		}

		if t, ok := value.(time.Time); ok {
			query.Set(key, t.UTC().Format(time.RFC3339))
			continue
		}

		rv := reflect.ValueOf(value)
		if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
			for i := 0; i < rv.Len(); i++ {
				s, err := cast.ToStringE(rv.Index(i).Interface())
				if err != nil {
					return nil, fmt.Errorf("param %s[%d]: %w", key, i, err)
				}
				query.Add(key, s)
			}
			continue
		}

		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", key, err)
		}
		query.Set(key, s)
	}
	return query, nil
}
