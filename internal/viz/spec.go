// Package viz generates and validates terminal visualization specs for SQL
// result sets. A spec is a small declarative JSON document (chart + encodings
// + transform pipeline) produced by a focused sub-agent and rendered by an
// external consumer.
package viz

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ResultFilePattern matches result file keys handed out by execute_sql.
var ResultFilePattern = regexp.MustCompile(`^result_[A-Za-z0-9._-]+\.json$`)

// VizSpec is the root visualization document, version "1".
type VizSpec struct {
	Version     string      `json:"version"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Data        DataConfig  `json:"data"`
	Chart       Chart       `json:"chart"`
	Transform   []Transform `json:"transform"`
}

// DataConfig names the result set the chart draws from.
type DataConfig struct {
	Source DataSource `json:"source"`
}

// DataSource references a result file key from execute_sql.
type DataSource struct {
	File string `json:"file"`
}

// FieldEncoding maps a column onto a chart axis.
type FieldEncoding struct {
	Field string `json:"field"`
	// Type is one of "category", "number", "time". Defaults to "number".
	Type string `json:"type,omitempty"`
}

// Encoding is the x/y/series axis mapping shared by bar, line, and scatter.
type Encoding struct {
	X      FieldEncoding  `json:"x"`
	Y      FieldEncoding  `json:"y"`
	Series *FieldEncoding `json:"series,omitempty"`
}

// BoxplotConfig selects the grouping and value columns for a boxplot.
type BoxplotConfig struct {
	LabelField string `json:"label_field"`
	ValueField string `json:"value_field"`
}

// HistogramConfig selects the column and bin count for a histogram.
type HistogramConfig struct {
	Field string `json:"field"`
	Bins  int    `json:"bins,omitempty"`
}

// ChartOptions carries optional presentation hints. All fields are optional.
type ChartOptions struct {
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	XLabel string `json:"x_label,omitempty"`
	YLabel string `json:"y_label,omitempty"`
	Color  string `json:"color,omitempty"`
	Marker string `json:"marker,omitempty"`
}

// Chart types.
const (
	ChartBar       = "bar"
	ChartLine      = "line"
	ChartScatter   = "scatter"
	ChartBoxplot   = "boxplot"
	ChartHistogram = "histogram"
)

// Chart is the discriminated chart union. Type selects the variant; bar,
// line, and scatter carry Encoding, boxplot and histogram carry their own
// config blocks. The schema enforces the per-variant shape, so the struct
// stays flat.
type Chart struct {
	Type     string    `json:"type"`
	Encoding *Encoding `json:"encoding,omitempty"`

	// Orientation and Mode apply to bar charts only.
	Orientation string `json:"orientation,omitempty"`
	Mode        string `json:"mode,omitempty"`

	Boxplot   *BoxplotConfig   `json:"boxplot,omitempty"`
	Histogram *HistogramConfig `json:"histogram,omitempty"`

	Options *ChartOptions `json:"options,omitempty"`
}

// Transform is one pipeline step. Exactly one of Sort, Limit, Filter is set;
// the schema rejects documents that mix them in one step.
type Transform struct {
	Sort   []SortItem    `json:"sort,omitempty"`
	Limit  int           `json:"limit,omitempty"`
	Filter *FilterConfig `json:"filter,omitempty"`
}

// SortItem orders rows by one field.
type SortItem struct {
	Field string `json:"field"`
	// Dir is "asc" or "desc". Defaults to "asc".
	Dir string `json:"dir,omitempty"`
}

// FilterConfig keeps rows where field op value holds.
type FilterConfig struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

var specSchema struct {
	once    sync.Once
	initErr error
	schema  *jsonschema.Schema
}

func compiledSpecSchema() (*jsonschema.Schema, error) {
	specSchema.once.Do(func() {
		specSchema.schema, specSchema.initErr = jsonschema.CompileString("vizspec", vizSpecSchema)
	})
	return specSchema.schema, specSchema.initErr
}

// ValidateSpec checks raw against the spec schema and decodes it, applying
// defaults the document omitted (bar orientation/mode, encoding types,
// histogram bins, sort direction).
func ValidateSpec(raw []byte) (*VizSpec, error) {
	schema, err := compiledSpecSchema()
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("viz: invalid spec JSON: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("viz: spec validation failed: %w", err)
	}
	var spec VizSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("viz: invalid spec JSON: %w", err)
	}
	applyDefaults(&spec)
	return &spec, nil
}

func applyDefaults(spec *VizSpec) {
	chart := &spec.Chart
	if enc := chart.Encoding; enc != nil {
		if enc.X.Type == "" {
			enc.X.Type = "number"
		}
		if enc.Y.Type == "" {
			enc.Y.Type = "number"
		}
		if enc.Series != nil && enc.Series.Type == "" {
			enc.Series.Type = "number"
		}
	}
	if chart.Type == ChartBar {
		if chart.Orientation == "" {
			chart.Orientation = "vertical"
		}
		if chart.Mode == "" {
			chart.Mode = "grouped"
		}
	}
	if chart.Type == ChartHistogram && chart.Histogram != nil && chart.Histogram.Bins == 0 {
		chart.Histogram.Bins = 20
	}
	for i := range spec.Transform {
		for j := range spec.Transform[i].Sort {
			if spec.Transform[i].Sort[j].Dir == "" {
				spec.Transform[i].Sort[j].Dir = "asc"
			}
		}
	}
}

const vizSpecSchema = `{
  "type": "object",
  "required": ["version", "data", "chart"],
  "properties": {
    "version": { "const": "1" },
    "title": { "type": "string" },
    "description": { "type": "string" },
    "data": {
      "type": "object",
      "required": ["source"],
      "properties": {
        "source": {
          "type": "object",
          "required": ["file"],
          "properties": {
            "file": { "type": "string", "pattern": "^result_[A-Za-z0-9._-]+\\.json$" }
          }
        }
      }
    },
    "chart": {
      "oneOf": [
        { "$ref": "#/$defs/barChart" },
        { "$ref": "#/$defs/lineChart" },
        { "$ref": "#/$defs/scatterChart" },
        { "$ref": "#/$defs/boxplotChart" },
        { "$ref": "#/$defs/histogramChart" }
      ]
    },
    "transform": {
      "type": "array",
      "items": {
        "oneOf": [
          { "$ref": "#/$defs/sortTransform" },
          { "$ref": "#/$defs/limitTransform" },
          { "$ref": "#/$defs/filterTransform" }
        ]
      }
    }
  },
  "$defs": {
    "fieldEncoding": {
      "type": "object",
      "required": ["field"],
      "properties": {
        "field": { "type": "string", "minLength": 1 },
        "type": { "enum": ["category", "number", "time"] }
      }
    },
    "xyEncoding": {
      "type": "object",
      "required": ["x", "y"],
      "properties": {
        "x": { "$ref": "#/$defs/fieldEncoding" },
        "y": { "$ref": "#/$defs/fieldEncoding" },
        "series": {
          "oneOf": [
            { "$ref": "#/$defs/fieldEncoding" },
            { "type": "null" }
          ]
        }
      }
    },
    "chartOptions": {
      "type": "object",
      "properties": {
        "width": { "type": "integer", "minimum": 20, "maximum": 200 },
        "height": { "type": "integer", "minimum": 10, "maximum": 100 },
        "x_label": { "type": "string" },
        "y_label": { "type": "string" },
        "color": { "type": "string" },
        "marker": { "type": "string" }
      }
    },
    "barChart": {
      "type": "object",
      "required": ["type", "encoding"],
      "properties": {
        "type": { "const": "bar" },
        "encoding": { "$ref": "#/$defs/xyEncoding" },
        "orientation": { "enum": ["vertical", "horizontal"] },
        "mode": { "enum": ["grouped", "stacked"] },
        "options": { "$ref": "#/$defs/chartOptions" }
      }
    },
    "lineChart": {
      "type": "object",
      "required": ["type", "encoding"],
      "properties": {
        "type": { "const": "line" },
        "encoding": { "$ref": "#/$defs/xyEncoding" },
        "options": { "$ref": "#/$defs/chartOptions" }
      }
    },
    "scatterChart": {
      "type": "object",
      "required": ["type", "encoding"],
      "properties": {
        "type": { "const": "scatter" },
        "encoding": { "$ref": "#/$defs/xyEncoding" },
        "options": { "$ref": "#/$defs/chartOptions" }
      }
    },
    "boxplotChart": {
      "type": "object",
      "required": ["type", "boxplot"],
      "properties": {
        "type": { "const": "boxplot" },
        "boxplot": {
          "type": "object",
          "required": ["label_field", "value_field"],
          "properties": {
            "label_field": { "type": "string", "minLength": 1 },
            "value_field": { "type": "string", "minLength": 1 }
          }
        },
        "options": { "$ref": "#/$defs/chartOptions" }
      }
    },
    "histogramChart": {
      "type": "object",
      "required": ["type", "histogram"],
      "properties": {
        "type": { "const": "histogram" },
        "histogram": {
          "type": "object",
          "required": ["field"],
          "properties": {
            "field": { "type": "string", "minLength": 1 },
            "bins": { "type": "integer", "minimum": 2, "maximum": 100 }
          }
        },
        "options": { "$ref": "#/$defs/chartOptions" }
      }
    },
    "sortTransform": {
      "type": "object",
      "required": ["sort"],
      "properties": {
        "sort": {
          "type": "array",
          "minItems": 1,
          "items": {
            "type": "object",
            "required": ["field"],
            "properties": {
              "field": { "type": "string", "minLength": 1 },
              "dir": { "enum": ["asc", "desc"] }
            }
          }
        },
        "limit": false,
        "filter": false
      }
    },
    "limitTransform": {
      "type": "object",
      "required": ["limit"],
      "properties": {
        "limit": { "type": "integer", "minimum": 1 },
        "sort": false,
        "filter": false
      }
    },
    "filterTransform": {
      "type": "object",
      "required": ["filter"],
      "properties": {
        "filter": {
          "type": "object",
          "required": ["field", "op", "value"],
          "properties": {
            "field": { "type": "string", "minLength": 1 },
            "op": { "enum": ["==", "!=", ">", "<", ">=", "<="] },
            "value": { "type": ["string", "number", "boolean", "null"] }
          }
        },
        "sort": false,
        "limit": false
      }
    }
  }
}`
