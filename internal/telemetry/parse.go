package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseLine turns a data line such as "hr=72;spo2=98;temp=36.6" into a
// Reading captured at the given time.
//
// Tokens are separated by ';'. A token without '=' is ignored, as are
// unknown keys, and a recognised key that never appears reads as 0. The
// whole line is rejected with ErrMalformedLine when:
//   - a token contains more than one '='
//   - a recognised key has a value that is not a finite number
//   - the line has no key=value token at all
//
// When a key repeats, the last value wins. Sentinel lines should be filtered
// out by the caller before parsing; they are rejected here as having no
// key=value token.
func ParseLine(line string, at time.Time) (Reading, error) {
	r := Reading{Time: at}
	pairs := 0

	for _, token := range strings.Split(strings.TrimSpace(line), ";") {
		if !strings.Contains(token, "=") {
			continue
		}
		parts := strings.Split(token, "=")
		if len(parts) != 2 {
			return Reading{}, fmt.Errorf("%w: token %q has %d '=' signs", ErrMalformedLine, token, len(parts)-1)
		}
		pairs++

		key := strings.TrimSpace(parts[0])
		var field *float64
		switch key {
		case "hr":
			field = &r.HR
		case "spo2":
			field = &r.SpO2
		case "temp":
			field = &r.Temp
		default:
			continue
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Reading{}, fmt.Errorf("%w: %s=%q is not a number", ErrMalformedLine, key, parts[1])
		}
		*field = v
	}

	if pairs == 0 {
		return Reading{}, fmt.Errorf("%w: no key=value tokens in %q", ErrMalformedLine, line)
	}
	return r, nil
}
