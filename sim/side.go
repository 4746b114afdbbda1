package sim

import "fmt"

// Side is the direction of a book or position. None marks a flat account.
type Side int8

const (
	None  Side = 0
	Long  Side = +1
	Short Side = -1
)

// Sides lists both trading sides in evaluation order.
var Sides = [2]Side{Long, Short}

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	case None:
		return "none"
	default:
		return fmt.Sprintf("side(%d)", int8(s))
	}
}

// Opposite returns the other trading side.
func (s Side) Opposite() Side {
	return -s
}

func (s Side) sign() float64 {
	return float64(s)
}

// MarshalText encodes the side name for JSON and YAML output.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "long":
		*s = Long
	case "short":
		*s = Short
	case "none", "":
		*s = None
	default:
		return fmt.Errorf("unknown side %q", b)
	}
	return nil
}
