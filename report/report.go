// Package report renders counting runs as HTML charts
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"

	"github.com/swdee/go-peoplecount"
)

// AssetsHost serves the echarts javascript, override it for offline
// deployments
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Render writes an HTML page with a line chart of the people counted in each
// processed frame of res, marking the mean, the maximum and the final
// estimate
func Render(w io.Writer, res *peoplecount.Result) error {

	if res == nil {
		return errors.New("no result to render")
	}

	x := make([]string, 0, len(res.Stats.Counts))
	y := make([]opts.LineData, 0, len(res.Stats.Counts))

	for _, fc := range res.Stats.Counts {
		x = append(x, strconv.Itoa(fc.Index))
		y = append(y, opts.LineData{Value: fc.Count})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "People Count", Width: "1000px", Height: "500px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%d people", res.People),
			Subtitle: fmt.Sprintf("%s run=%s frames=%d/%d failed=%d", res.Path, res.RunID, len(res.Stats.Counts), res.FramesRead, res.FramesFailed),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "people", NameLocation: "middle", NameGap: 30}),
	)

	line.SetXAxis(x).
		AddSeries("people", y,
			charts.WithMarkLineNameTypeItemOpts(
				opts.MarkLineNameTypeItem{Name: "mean", Type: "average"},
				opts.MarkLineNameTypeItem{Name: "max", Type: "max"},
			),
			charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: "estimate", YAxis: res.People},
			),
		)

	if err := line.Render(w); err != nil {
		return errors.Wrap(err, "error rendering chart")
	}

	return nil
}
