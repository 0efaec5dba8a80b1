package oncall

import (
	"fmt"
	"slices"
	"strconv"
)

// LevelArgMode decides how positional level arguments are read. It is
// ambiguous whether "12" names level 12 or levels 1 and 2, so the caller
// has to pick.
type LevelArgMode int

const (
	// LevelArgsNumber reads each argument as one whole level number.
	LevelArgsNumber LevelArgMode = iota
	// LevelArgsDigits reads every digit of every argument as its own level.
	LevelArgsDigits
)

func (m LevelArgMode) String() string {
	switch m {
	case LevelArgsNumber:
		return "number"
	case LevelArgsDigits:
		return "digits"
	}
	return fmt.Sprintf("LevelArgMode(%d)", int(m))
}

func ParseLevelArgMode(s string) (LevelArgMode, error) {
	switch s {
	case "", "number":
		return LevelArgsNumber, nil
	case "digits":
		return LevelArgsDigits, nil
	}
	return 0, fmt.Errorf("unknown level argument mode %q (expected \"number\" or \"digits\")", s)
}

// ParseLevelArgs turns positional arguments into level numbers, in order of first
// appearance and without duplicates. No arguments means no level filter.
func ParseLevelArgs(args []string, mode LevelArgMode) ([]int, error) {
	var levels []int
	add := func(n int) {
		if !slices.Contains(levels, n) {
			levels = append(levels, n)
		}
	}

	for _, arg := range args {
		if arg == "" {
			return nil, fmt.Errorf("empty level argument")
		}
		switch mode {
		case LevelArgsDigits:
			for _, r := range arg {
				if r < '0' || r > '9' {
					return nil, fmt.Errorf("level argument %q is not a number", arg)
				}
				add(int(r - '0'))
			}
		default:
			for _, r := range arg {
				if r < '0' || r > '9' {
					return nil, fmt.Errorf("level argument %q is not a number", arg)
				}
			}
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, fmt.Errorf("level argument %q: %w", arg, err)
			}
			add(n)
		}
	}
	return levels, nil
}
