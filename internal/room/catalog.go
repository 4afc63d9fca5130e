package room

import (
	"fmt"

	"github.com/sakshamg567/snakearena/pkg/utils"
)

const simpleLayout = `
@name Simple
@description A very small and simple room for testing with.
@max-ticks 500
#####
.....
.....
.....
.....
`

const boxedLayout = `
@name Boxed
@description A moderate-sized room that is boxed in around the outside.
@max-ticks 1000
##########
#........#
#........#
#........#
#........#
#........#
#........#
#........#
#........#
##########
`

const speckledLayout = `
@name Speckled
@description A medium-sized room with random walls placed in the centre.
@max-ticks 4000
........
....#...
.##.....
......#.
..#..##.
......#.
.#.#....
........
`

const largeLayout = `
@name Large
@description A very large room with interesting wall placing.
@max-ticks 12000
............#.......
............#.......
....###.....#.......
....#.......#.......
....#.#..#.....##...
.........#.....##...
...#.....#..#####...
............###.....
............###.....
###.####....####.###
.......#.........#..
.......#............
.......#....#.......
.......#....#....#..
########....#....###
............#.......
`

// DefaultTemplates is the built-in catalog: six Simple rooms, one Boxed, one
// Speckled and six Large.
func DefaultTemplates() ([]Template, error) {
	catalog := []struct {
		layout string
		count  int
	}{
		{simpleLayout, 6},
		{boxedLayout, 1},
		{speckledLayout, 1},
		{largeLayout, 6},
	}

	var out []Template
	for _, c := range catalog {
		l, err := utils.ParseLayout(c.layout)
		if err != nil {
			return nil, fmt.Errorf("built-in layout: %w", err)
		}
		t := TemplateFromLayout(l)
		for i := 0; i < c.count; i++ {
			out = append(out, t)
		}
	}
	return out, nil
}
