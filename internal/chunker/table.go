package chunker

import (
	"strings"

	"github.com/olekukonko/tablewriter"
)

// renderTable serialises rows as a bordered text grid. The first row is the
// header. Empty rows are dropped and short rows are padded so every column
// lines up. Returns "" when there is nothing to render.
func renderTable(rows [][]string) string {
	var kept [][]string
	width := 0
	for _, r := range rows {
		cells := make([]string, 0, len(r))
		nonEmpty := false
		for _, c := range r {
			c = strings.TrimSpace(c)
			if c != "" {
				nonEmpty = true
			}
			cells = append(cells, c)
		}
		if len(cells) == 0 || !nonEmpty {
			continue
		}
		width = max(width, len(cells))
		kept = append(kept, cells)
	}
	if len(kept) == 0 {
		return ""
	}
	for i := range kept {
		for len(kept[i]) < width {
			kept[i] = append(kept[i], "")
		}
	}

	var sb strings.Builder
	tw := tablewriter.NewWriter(&sb)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetRowLine(true)
	tw.SetHeader(kept[0])
	tw.AppendBulk(kept[1:])
	tw.Render()
	return strings.TrimRight(sb.String(), "\n")
}
