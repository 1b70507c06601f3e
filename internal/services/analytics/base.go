package analytics

import (
	"errors"
	"fmt"
	"strings"

	domsvc "OrdreBook/internal/domain/service"
)

var (
	ErrEmptyBook   = errors.New("analytics: order book is empty")
	ErrEmptyTrades = errors.New("analytics: no recent trades")
)

const (
	NameImbalance = "imbalance"
	NameIceberg   = "iceberg"
	NameVWAPOBV   = "vwap_obv"
	NameDepth     = "depth"
	NameOrderFlow = "order_flow"
)

// DefaultNames is the analyzer set used when none is configured.
var DefaultNames = []string{NameImbalance, NameIceberg, NameVWAPOBV, NameDepth, NameOrderFlow}

// Build instantiates analyzers by name with their default parameters.
func Build(names []string) ([]domsvc.Analyzer, error) {
	if len(names) == 0 {
		names = DefaultNames
	}
	out := make([]domsvc.Analyzer, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			return nil, fmt.Errorf("analyzer %q listed twice", name)
		}
		seen[name] = true

		switch name {
		case NameImbalance:
			out = append(out, NewImbalance(1.2, 0))
		case NameIceberg:
			out = append(out, NewIceberg(1000))
		case NameVWAPOBV:
			out = append(out, NewVWAPOBV())
		case NameDepth:
			out = append(out, NewDepth(0.005, 0.2))
		case NameOrderFlow:
			out = append(out, NewOrderFlow(0.5))
		default:
			return nil, fmt.Errorf("unknown analyzer %q", raw)
		}
	}
	return out, nil
}
