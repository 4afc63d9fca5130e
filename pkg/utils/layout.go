package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Layout is a room template read from text. Walls is row-major and
// len(Walls) == Width*Height.
type Layout struct {
	Name        string
	Description string
	MaxTicks    int
	Width       int
	Height      int
	Walls       []bool
}

// ParseLayout reads a layout. Header lines start with '@' ("@name Boxed",
// "@description ...", "@max-ticks 1000"); every other non-empty line is a
// grid row where '#' is a wall and '.' is free space. Whitespace inside rows
// is ignored so rows can be spaced out for readability.
func ParseLayout(text string) (*Layout, error) {
	l := &Layout{}
	for n, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "@") {
			key, value, _ := strings.Cut(line[1:], " ")
			value = strings.TrimSpace(value)
			switch key {
			case "name":
				l.Name = value
			case "description":
				l.Description = value
			case "max-ticks":
				v, err := strconv.Atoi(value)
				if err != nil || v < 0 {
					return nil, fmt.Errorf("line %d: bad max-ticks %q", n+1, value)
				}
				l.MaxTicks = v
			default:
				return nil, fmt.Errorf("line %d: unknown header %q", n+1, key)
			}
			continue
		}

		row := strings.Join(strings.Fields(line), "")
		if l.Width == 0 {
			l.Width = len(row)
		} else if len(row) != l.Width {
			return nil, fmt.Errorf("line %d: row has %d cells, want %d", n+1, len(row), l.Width)
		}
		for _, c := range row {
			switch c {
			case '#':
				l.Walls = append(l.Walls, true)
			case '.':
				l.Walls = append(l.Walls, false)
			default:
				return nil, fmt.Errorf("line %d: unexpected cell %q", n+1, c)
			}
		}
		l.Height++
	}

	if l.Height == 0 {
		return nil, errors.New("layout has no rows")
	}
	return l, nil
}

// LoadLayouts parses every *.txt file in dir, in file name order. A layout
// without a @name header is named after its file.
func LoadLayouts(dir string) ([]*Layout, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	layouts := make([]*Layout, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		l, err := ParseLayout(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if l.Name == "" {
			l.Name = strings.TrimSuffix(filepath.Base(p), ".txt")
		}
		layouts = append(layouts, l)
	}
	return layouts, nil
}
