package offset

import (
	"fmt"
	"strings"
)

// Strategy selects where a consumer starts reading a partition.
type Strategy int8

const (
	// Unset is Earliest as a selector's default strategy, and "no fallback"
	// as its failure strategy.
	Unset Strategy = iota
	// Earliest is the first offset still in the log (the log start offset).
	Earliest
	// Last is the offset of the last message in the log, so that exactly
	// one message is read. On an empty partition it is the high watermark.
	Last
	// Next is the high watermark: only messages produced from now on are
	// read.
	Next
	// Specified is TopicSelector.Offset.
	Specified
	// NextUncommitted is the offset after the group's committed offset, or
	// the selector's failure strategy when the group has not committed.
	NextUncommitted
)

var strategyNames = map[Strategy]string{
	Unset:           "unset",
	Earliest:        "earliest",
	Last:            "last",
	Next:            "next",
	Specified:       "specified",
	NextUncommitted: "next-uncommitted",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int8(s))
}

func (s Strategy) valid() bool {
	_, ok := strategyNames[s]
	return ok
}

func (s Strategy) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("unknown offset strategy %d", int8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts strategy names in any case. An empty string is Unset.
func (s *Strategy) UnmarshalText(b []byte) error {
	text := strings.ToLower(strings.TrimSpace(string(b)))
	if text == "" {
		*s = Unset
		return nil
	}
	for strategy, name := range strategyNames {
		if name == text {
			*s = strategy
			return nil
		}
	}
	return fmt.Errorf("unknown offset strategy %q", string(b))
}
