// Package risk holds the product policy that turns model probabilities into
// risk tiers and a batch of tiers into one overall verdict.
package risk

import "fmt"

// Tier is a discrete risk level. Tiers are ordered Low < Medium < High.
type Tier int

const (
	Low Tier = iota
	Medium
	High
)

// Probability thresholds. Each bracket includes its lower bound.
const (
	MediumThreshold = 0.30
	HighThreshold   = 0.70
)

// Overall verdict thresholds.
const (
	HighCountForHigh     = 2
	MediumCountForMedium = 5
	HighCountForMedium   = 1
)

var tierNames = [...]string{Low: "low", Medium: "medium", High: "high"}

func (t Tier) String() string {
	if t < Low || t > High {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierNames[t]
}

// MarshalText encodes the tier as "low", "medium" or "high".
func (t Tier) MarshalText() ([]byte, error) {
	if t < Low || t > High {
		return nil, fmt.Errorf("invalid risk tier %d", int(t))
	}
	return []byte(tierNames[t]), nil
}

// UnmarshalText parses "low", "medium" or "high".
func (t *Tier) UnmarshalText(b []byte) error {
	tier, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = tier
	return nil
}

// ParseTier parses a tier name.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return Low, fmt.Errorf("unknown risk tier %q", s)
}

// TierFor buckets a positive-class probability.
func TierFor(p float64) Tier {
	switch {
	case p < MediumThreshold:
		return Low
	case p < HighThreshold:
		return Medium
	default:
		return High
	}
}

// Counts tallies tiers in a batch.
type Counts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Count tallies the tiers.
func Count(tiers []Tier) Counts {
	var c Counts
	for _, t := range tiers {
		switch t {
		case Low:
			c.Low++
		case Medium:
			c.Medium++
		case High:
			c.High++
		}
	}
	return c
}

// Overall derives the verdict for a batch. Rules apply in order: two or more
// high items give high; otherwise five or more medium items or any high item
// give medium; otherwise low. An empty batch is low.
func Overall(tiers []Tier) Tier {
	return Count(tiers).Overall()
}

// Overall applies the verdict rules to pre-computed counts.
func (c Counts) Overall() Tier {
	if c.High >= HighCountForHigh {
		return High
	}
	if c.Medium >= MediumCountForMedium || c.High >= HighCountForMedium {
		return Medium
	}
	return Low
}
