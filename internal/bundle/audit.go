package bundle

// Level is the coarse score of an audit.
type Level string

const (
	LevelBad    Level = "Bad"
	LevelWarn   Level = "Warn"
	LevelNotice Level = "Notice"
	LevelGood   Level = "Good"
)

// LevelFor maps a numeric score in [0,1] onto a coarse level.
func LevelFor(score float64) Level {
	switch {
	case score >= 0.9:
		return LevelGood
	case score >= 0.7:
		return LevelNotice
	case score >= 0.4:
		return LevelWarn
	default:
		return LevelBad
	}
}

// Throttle bounds the raw metric mapped linearly onto a numeric score: Good
// or better scores 1, Bad or worse scores 0.
type Throttle struct {
	Good float64 `json:"good" yaml:"good"`
	Bad  float64 `json:"bad" yaml:"bad"`
}

// DetailType selects how an audit detail renders.
type DetailType string

const (
	DetailTable DetailType = "table"
	DetailList  DetailType = "list"
)

// Detail is structured data for rendering an audit finding.
type Detail struct {
	Type     DetailType `json:"type" yaml:"type"`
	Headings []string   `json:"headings,omitempty" yaml:"headings,omitempty"`
	Rows     [][]string `json:"rows,omitempty" yaml:"rows,omitempty"`
	Items    []string   `json:"items,omitempty" yaml:"items,omitempty"`
}

// AuditResult is the outcome of one rule for one entry point.
type AuditResult struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	Link         string    `json:"link,omitempty" yaml:"link,omitempty"`
	Detail       *Detail   `json:"detail,omitempty" yaml:"detail,omitempty"`
	Score        Level     `json:"score" yaml:"score"`
	Weight       float64   `json:"weight" yaml:"weight"`
	NumericScore *float64  `json:"numeric_score,omitempty" yaml:"numeric_score,omitempty"`
	Throttle     *Throttle `json:"throttle,omitempty" yaml:"throttle,omitempty"`
}
