package convert

import (
	"math"
	"net/mail"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayouts are tried in order by the date converter
var DateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

func registerBuiltins(r *Registry) {
	r.byKind[reflect.String] = String
	r.byKind[reflect.Bool] = Bool
	for _, k := range []reflect.Kind{reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64} {
		r.byKind[k] = Int
	}
	for _, k := range []reflect.Kind{reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64} {
		r.byKind[k] = Uint
	}
	r.byKind[reflect.Float32] = Float
	r.byKind[reflect.Float64] = Float

	r.byType[reflect.TypeOf(uuid.UUID{})] = UUID
	r.byType[reflect.TypeOf(time.Time{})] = Date
	r.byType[reflect.TypeOf(time.Duration(0))] = Duration

	r.named["email"] = Email
	r.named["oneToMany"] = OneToMany(r)
	r.named["percentage"] = Percentage
}

// String returns the input unchanged
var String = ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
	return reflect.ValueOf(input).Convert(target).Interface(), nil
})

var trueValues = map[string]bool{"true": true, "t": true, "yes": true, "y": true, "on": true, "1": true, "enabled": true}

// Bool is lenient: anything not recognised as true is false, so an
// unchecked checkbox value never produces an error
var Bool = ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
	v := trueValues[strings.ToLower(strings.TrimSpace(input))]
	if !v {
		if n, err := strconv.ParseFloat(strings.TrimSpace(input), 64); err == nil && n != 0 {
			v = true
		}
	}
	return reflect.ValueOf(v).Convert(target).Interface(), nil
})

// preprocessNumber strips whitespace, currency symbols and grouping
// separators, and turns accounting-style (12) into -12
func preprocessNumber(input string) string {
	s := strings.TrimSpace(input)
	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	return s
}

// Int converts to any signed integer kind
var Int = ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
	bits := target.Bits()
	n, err := strconv.ParseInt(preprocessNumber(input), 10, bits)
	if err != nil {
		if isRangeErr(err) {
			min := -(int64(1) << (bits - 1))
			max := int64(1)<<(bits-1) - 1
			return nil, NewError("converter.integer", "outOfRange", min, max)
		}
		return nil, NewError("converter.number", "invalidNumber")
	}
	return reflect.ValueOf(n).Convert(target).Interface(), nil
})

// Uint converts to any unsigned integer kind
var Uint = ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
	bits := target.Bits()
	n, err := strconv.ParseUint(preprocessNumber(input), 10, bits)
	if err != nil {
		if isRangeErr(err) {
			max := uint64(math.MaxUint64) >> (64 - bits)
			return nil, NewError("converter.integer", "outOfRange", 0, max)
		}
		return nil, NewError("converter.number", "invalidNumber")
	}
	return reflect.ValueOf(n).Convert(target).Interface(), nil
})

// Float converts to float32 or float64
var Float = ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
	n, err := strconv.ParseFloat(preprocessNumber(input), target.Bits())
	if err != nil {
		return nil, NewError("converter.number", "invalidNumber")
	}
	return reflect.ValueOf(n).Convert(target).Interface(), nil
})

// Percentage converts "15%" or "15" to 0.15
var Percentage = ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
	s := strings.TrimSuffix(strings.TrimSpace(input), "%")
	n, err := strconv.ParseFloat(preprocessNumber(s), 64)
	if err != nil {
		return nil, NewError("converter.number", "invalidNumber")
	}
	return reflect.ValueOf(n / 100).Convert(target).Interface(), nil
})

// UUID parses a google/uuid identifier
var UUID = ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return nil, NewError("converter.uuid", "invalidUUID")
	}
	return id, nil
})

// Date tries each of DateLayouts in turn
var Date = ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
	s := strings.TrimSpace(input)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, NewError("converter.date", "invalidDate")
})

// Duration parses Go duration syntax, e.g. "1h30m"
var Duration = ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
	d, err := time.ParseDuration(strings.TrimSpace(input))
	if err != nil {
		return nil, NewError("converter.number", "invalidNumber")
	}
	return d, nil
})

// Email validates and normalises an address to its bare form
var Email = ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(input))
	if err != nil || !strings.Contains(addr.Address, "@") {
		return nil, NewError("converter.email", "invalidEmail")
	}
	return reflect.ValueOf(addr.Address).Convert(target).Interface(), nil
})

var oneToManySplit = regexp.MustCompile(`,?[ ]+|,`)

// OneToMany splits a comma or space separated list and converts each item
// with the registry's default converter for the target type
func OneToMany(r *Registry) Converter {
	return ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
		elem := target
		if elem.Kind() == reflect.Slice {
			elem = elem.Elem()
		}
		c, ok := r.ForType(elem)
		if !ok {
			return nil, ErrNoConverter
		}

		var items []interface{}
		for _, part := range oneToManySplit.Split(strings.TrimSpace(input), -1) {
			if part == "" {
				continue
			}
			item, err := c.Convert(part, elem)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	})
}

func isRangeErr(err error) bool {
	numErr, ok := err.(*strconv.NumError)
	return ok && numErr.Err == strconv.ErrRange
}
