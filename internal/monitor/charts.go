package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/spraypaint/internal/httputil"
)

// handleRateChart renders a bar chart of the smoothed packet rate of every
// tracked device.
func (ws *WebServer) handleRateChart(w http.ResponseWriter, r *http.Request) {
	st := ws.status()
	if st == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no session status available")
		return
	}

	x := make([]string, 0, len(st.Devices))
	y := make([]opts.BarData, 0, len(st.Devices))
	for _, d := range st.Devices {
		x = append(x, d.ID.String())
		y = append(y, opts.BarData{Value: math.Round(d.RateHz*10) / 10})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "IMU packet rates", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "IMU packet rates", Subtitle: fmt.Sprintf("t=%.1fs devices=%d seated=%d", st.Time, len(st.Devices), st.SeatedCount())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Hz"}),
	)
	bar.SetXAxis(x).
		AddSeries("rate", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

var seriesColors = []color.RGBA{
	{R: 0xe6, G: 0x19, B: 0x4b, A: 0xff},
	{R: 0x3c, G: 0xb4, B: 0x4b, A: 0xff},
	{R: 0x43, G: 0x63, B: 0xd8, A: 0xff},
	{R: 0xf5, G: 0x82, B: 0x31, A: 0xff},
	{R: 0x91, G: 0x1e, B: 0xb4, A: 0xff},
	{R: 0x42, G: 0xd4, B: 0xf4, A: 0xff},
	{R: 0xf0, G: 0x32, B: 0xe6, A: 0xff},
	{R: 0x80, G: 0x80, B: 0x00, A: 0xff},
}

// renderSignalPlot draws one line per device plus the fire threshold.
func (ws *WebServer) renderSignalPlot() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Gesture signal"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Signal"
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	ids, series := ws.cfg.Signals.Snapshot()
	for i, id := range ids {
		pts := series[id]
		xys := make(plotter.XYs, len(pts))
		for j, pt := range pts {
			xys[j] = plotter.XY{X: pt.Time, Y: pt.Value}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("device %v: %w", id, err)
		}
		line.Color = seriesColors[i%len(seriesColors)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(id.String(), line)
	}

	if ws.cfg.SignalThreshold > 0 {
		thr := plotter.NewFunction(func(float64) float64 { return ws.cfg.SignalThreshold })
		thr.Color = color.Gray{Y: 0x80}
		thr.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(thr)
		p.Legend.Add("threshold", thr)
	}
	return p, nil
}

func (ws *WebServer) handleSignalPlot(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Signals == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "signal history disabled")
		return
	}
	p, err := ws.renderSignalPlot()
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
