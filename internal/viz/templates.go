package viz

import "fmt"

// Placeholder field names the model replaces with real column names.
const (
	CategoryPlaceholder = "<category_column>"
	NumberPlaceholder   = "<number_column>"
	TimePlaceholder     = "<time_column>"
	LabelPlaceholder    = "<label_column>"
	ValuePlaceholder    = "<value_column>"
)

// ChartTypeInfo describes one chart type for the model's tool catalog.
type ChartTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	UseWhen     string `json:"use_when"`
}

// ListChartTypes returns the chart catalog with selection guidance.
func ListChartTypes() []ChartTypeInfo {
	return []ChartTypeInfo{
		{
			Type:        ChartBar,
			Description: "Compare categories. Use x for category, y for numeric value.",
			UseWhen:     "Comparing values across categories (e.g., sales by region)",
		},
		{
			Type:        ChartLine,
			Description: "Show trends over time/sequence. Use x for time/sequence, y for value.",
			UseWhen:     "Showing change over time (e.g., monthly revenue)",
		},
		{
			Type:        ChartScatter,
			Description: "Show correlation between two numeric variables.",
			UseWhen:     "Exploring relationship between two numbers (e.g., age vs income)",
		},
		{
			Type:        ChartBoxplot,
			Description: "Show distribution of values across groups.",
			UseWhen:     "Comparing distributions (e.g., salary by department)",
		},
		{
			Type:        ChartHistogram,
			Description: "Show distribution of a single numeric variable.",
			UseWhen:     "Understanding value distribution (e.g., age distribution)",
		},
	}
}

// ChartTemplate returns a minimal valid chart for the given type with
// placeholder field names.
func ChartTemplate(chartType string) (Chart, error) {
	switch chartType {
	case ChartBar:
		return Chart{
			Type: ChartBar,
			Encoding: &Encoding{
				X: FieldEncoding{Field: CategoryPlaceholder, Type: "category"},
				Y: FieldEncoding{Field: NumberPlaceholder, Type: "number"},
			},
			Orientation: "vertical",
			Mode:        "grouped",
			Options:     &ChartOptions{},
		}, nil
	case ChartLine:
		return Chart{
			Type: ChartLine,
			Encoding: &Encoding{
				X: FieldEncoding{Field: TimePlaceholder, Type: "time"},
				Y: FieldEncoding{Field: NumberPlaceholder, Type: "number"},
			},
			Options: &ChartOptions{},
		}, nil
	case ChartScatter:
		return Chart{
			Type: ChartScatter,
			Encoding: &Encoding{
				X: FieldEncoding{Field: NumberPlaceholder, Type: "number"},
				Y: FieldEncoding{Field: NumberPlaceholder, Type: "number"},
			},
			Options: &ChartOptions{},
		}, nil
	case ChartBoxplot:
		return Chart{
			Type: ChartBoxplot,
			Boxplot: &BoxplotConfig{
				LabelField: LabelPlaceholder,
				ValueField: ValuePlaceholder,
			},
			Options: &ChartOptions{},
		}, nil
	case ChartHistogram:
		return Chart{
			Type: ChartHistogram,
			Histogram: &HistogramConfig{
				Field: NumberPlaceholder,
				Bins:  20,
			},
			Options: &ChartOptions{},
		}, nil
	default:
		return Chart{}, fmt.Errorf("viz: unknown chart type: %s", chartType)
	}
}

// SpecTemplate returns a complete spec skeleton with the data source filled
// in and placeholder field names on the chart.
func SpecTemplate(chartType, file string) (*VizSpec, error) {
	chart, err := ChartTemplate(chartType)
	if err != nil {
		return nil, err
	}
	return &VizSpec{
		Version:   "1",
		Data:      DataConfig{Source: DataSource{File: file}},
		Chart:     chart,
		Transform: []Transform{},
	}, nil
}
