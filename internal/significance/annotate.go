package significance

import "strings"

// Column describes one table column for grouping into comparison sets.
type Column struct {
	Cross  string
	Option string
	Wave   string
	Margin bool
}

// Annotations holds the result of both comparison passes. Letters and
// Romans are indexed [row][col] and hold comma-joined identifiers of the
// columns the cell is significantly higher than.
type Annotations struct {
	Letters [][]string
	Romans  [][]string
	// ColumnLetters and ColumnRomans are the identifiers assigned to each
	// column ("" when the column takes no part in that pass).
	ColumnLetters []string
	ColumnRomans  []string
	// Tests counts the pairwise tests that met the preconditions.
	Tests int
}

// Display joins the annotations of one cell: "A,B II".
func (a *Annotations) Display(row, col int) string {
	var parts []string
	if l := a.Letters[row][col]; l != "" {
		parts = append(parts, l)
	}
	if r := a.Romans[row][col]; r != "" {
		parts = append(parts, r)
	}
	return strings.Join(parts, " ")
}

// Annotate runs the two comparison passes over counts ([row][col]) with
// per-column bases. Pass one compares the options of each cross break within
// a wave using letters; margin columns are left out. Pass two compares the
// same cross option across waves using roman numerals. Rows with
// testable[row] false are skipped.
func Annotate(counts [][]float64, bases []float64, cols []Column, testable []bool, opt Options) *Annotations {
	a := &Annotations{
		Letters:       grid(len(counts), len(cols)),
		Romans:        grid(len(counts), len(cols)),
		ColumnLetters: make([]string, len(cols)),
		ColumnRomans:  make([]string, len(cols)),
	}
	byCross := groupColumns(cols, func(c Column) (string, bool) {
		return c.Cross + "\x00" + c.Wave, !c.Margin
	})
	byWave := groupColumns(cols, func(c Column) (string, bool) {
		return c.Cross + "\x00" + c.Option, true
	})
	for _, g := range byCross {
		ids := make([]string, len(g))
		for k, ci := range g {
			ids[k] = Letter(k)
			a.ColumnLetters[ci] = ids[k]
		}
		a.Tests += compareGroup(counts, bases, g, ids, testable, opt, a.Letters)
	}
	for _, g := range byWave {
		if len(g) < 2 {
			continue
		}
		ids := make([]string, len(g))
		for k, ci := range g {
			ids[k] = Roman(k)
			a.ColumnRomans[ci] = ids[k]
		}
		a.Tests += compareGroup(counts, bases, g, ids, testable, opt, a.Romans)
	}
	return a
}

// Compare runs the pairwise routine over every column of counts as a single
// comparison group and returns the [row][col] annotations.
func Compare(counts [][]float64, bases []float64, ids []string, opt Options) [][]string {
	out := grid(len(counts), len(bases))
	g := make([]int, len(bases))
	for i := range g {
		g[i] = i
	}
	compareGroup(counts, bases, g, ids, nil, opt, out)
	return out
}

func compareGroup(counts [][]float64, bases []float64, group []int, ids []string, testable []bool, opt Options, out [][]string) int {
	tests := 0
	minBase := opt.normalized().MinBase
	for r := range counts {
		if testable != nil && !testable[r] {
			continue
		}
		marks := make([][]string, len(group))
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				ci, cj := group[i], group[j]
				x1, n1 := counts[r][ci], bases[ci]
				x2, n2 := counts[r][cj], bases[cj]
				if n1 >= minBase && n2 >= minBase && x1 > 0 && x2 > 0 {
					tests++
				}
				if !opt.Significant(x1, n1, x2, n2) {
					continue
				}
				if x1/n1 > x2/n2 {
					marks[i] = append(marks[i], ids[j])
				} else if x2/n2 > x1/n1 {
					marks[j] = append(marks[j], ids[i])
				}
			}
		}
		for k, ci := range group {
			if len(marks[k]) == 0 {
				continue
			}
			// marks arrive in column order.
			out[r][ci] = join(out[r][ci], strings.Join(marks[k], ","))
		}
	}
	return tests
}

func groupColumns(cols []Column, key func(Column) (string, bool)) [][]int {
	idx := map[string]int{}
	var groups [][]int
	for i, c := range cols {
		k, ok := key(c)
		if !ok {
			continue
		}
		g, seen := idx[k]
		if !seen {
			g = len(groups)
			idx[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func join(a, b string) string {
	if a == "" {
		return b
	}
	return a + "," + b
}

func grid(rows, cols int) [][]string {
	g := make([][]string, rows)
	for i := range g {
		g[i] = make([]string, cols)
	}
	return g
}
