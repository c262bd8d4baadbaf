package web

import (
	"bytes"
	"fmt"
	"html/template"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hpungsan/blockcad/internal/db"
	"github.com/hpungsan/blockcad/internal/editor"
	"github.com/hpungsan/blockcad/internal/export"
	"github.com/hpungsan/blockcad/sdk"
)

// maxReportBlocks caps the block table in the report.
const maxReportBlocks = 50

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

var numbers = message.NewPrinter(language.English)

// ReportInput is everything the scene report shows.
type ReportInput struct {
	Version string
	State   editor.State
	Blocks  []sdk.Block
	Exports []db.ExportRecord
}

// BuildReport renders the scene summary as markdown.
func BuildReport(in ReportInput) string {
	var b strings.Builder
	st := in.State

	fmt.Fprintf(&b, "# blockcad scene\n\n")
	fmt.Fprintf(&b, "Session `%s` at frame %s", st.ID, numbers.Sprintf("%d", st.Frame))
	if in.Version != "" {
		fmt.Fprintf(&b, " (blockcad %s)", in.Version)
	}
	b.WriteString("\n\n")

	b.WriteString("## Summary\n\n")
	b.WriteString("| | |\n|---|---|\n")
	visible, cubes := 0, 0
	for _, blk := range in.Blocks {
		if blk.Visible {
			visible++
		}
		if export.Exportable(blk) {
			cubes++
		}
	}
	fmt.Fprintf(&b, "| Blocks | %s (%s visible) |\n", numbers.Sprintf("%d", len(in.Blocks)), numbers.Sprintf("%d", visible))
	fmt.Fprintf(&b, "| STL triangles | %s |\n", numbers.Sprintf("%d", cubes*export.TrianglesPerCube))
	fmt.Fprintf(&b, "| Next id | %d |\n", st.NextID)
	fmt.Fprintf(&b, "| Physics | %s |\n", onOff(st.Physics))
	fmt.Fprintf(&b, "| Grid | %g |\n", st.GridSize)
	fmt.Fprintf(&b, "| Active | %s %s, %s, size %g x %g x %g |\n",
		st.ActiveMaterial, st.ActiveShape, colorHex(st.ActiveColor),
		st.ActiveSize.X, st.ActiveSize.Y, st.ActiveSize.Z)
	fmt.Fprintf(&b, "| History | %d of %d snapshots |\n", st.HistoryCursor, st.HistoryLen)
	b.WriteString("\n")

	if len(in.Blocks) > 0 {
		b.WriteString("## Shapes\n\n")
		b.WriteString("| Shape | Count |\n|---|---:|\n")
		for _, sc := range shapeCounts(in.Blocks) {
			fmt.Fprintf(&b, "| %s | %s |\n", sc.name, numbers.Sprintf("%d", sc.count))
		}
		b.WriteString("\n")

		b.WriteString("## Blocks\n\n")
		b.WriteString("| Id | Shape | Position | Size | Color | State |\n|---:|---|---|---|---|---|\n")
		for i, blk := range in.Blocks {
			if i == maxReportBlocks {
				fmt.Fprintf(&b, "\n%s more not shown.\n", numbers.Sprintf("%d", len(in.Blocks)-maxReportBlocks))
				break
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
				blk.ID, blk.Shape, vec(blk.Position), vec(blk.Size), colorHex(blk.Color), blockState(blk))
		}
		b.WriteString("\n")
	}

	if len(in.Exports) > 0 {
		b.WriteString("## Recent exports\n\n")
		b.WriteString("| Time (UTC) | Format | Blocks | Size | Path |\n|---|---|---:|---:|---|\n")
		for _, e := range in.Exports {
			fmt.Fprintf(&b, "| %s | %s | %d | %s | `%s` |\n",
				time.UnixMilli(e.CreatedAt).UTC().Format("2006-01-02 15:04"),
				e.Format, e.Blocks, humanize.Bytes(uint64(e.Bytes)), e.Path)
		}
		b.WriteString("\n")
	}

	if len(st.Console) > 0 {
		b.WriteString("## Console\n\n")
		for _, line := range st.Console {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}

type shapeCount struct {
	name  string
	count int
}

func shapeCounts(blocks []sdk.Block) []shapeCount {
	counts := map[string]int{}
	for _, b := range blocks {
		counts[b.Shape.String()]++
	}
	out := make([]shapeCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, shapeCount{name, n})
	}
	slices.SortFunc(out, func(a, b shapeCount) int {
		if a.count != b.count {
			return b.count - a.count
		}
		return strings.Compare(a.name, b.name)
	})
	return out
}

func blockState(b sdk.Block) string {
	switch {
	case !b.Visible:
		return "hidden"
	case b.Sleeping:
		return "asleep"
	default:
		return "falling"
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func vec(v sdk.Vector3) string {
	return fmt.Sprintf("%.2f, %.2f, %.2f", v.X, v.Y, v.Z)
}

func colorHex(c sdk.Color) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}
