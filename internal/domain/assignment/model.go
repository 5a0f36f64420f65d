package assignment

import "time"

// SystemType is the search system a participant uses during the task.
type SystemType string

const (
	WebSearch  SystemType = "WebSearch"
	ConvSearch SystemType = "ConvSearch"
)

// Systems lists every system type in the design.
var Systems = []SystemType{WebSearch, ConvSearch}

// Valid reports whether s is a known system type.
func (s SystemType) Valid() bool {
	return s == WebSearch || s == ConvSearch
}

// Topic is a task topic with its scenario prose.
type Topic struct {
	Name       string   `json:"name" yaml:"name"`
	SearchCase string   `json:"search_case" yaml:"search_case"`
	SearchTask string   `json:"search_task" yaml:"search_task"`
	Keywords   []string `json:"keywords,omitempty" yaml:"keywords"`
}

// Cell is one (topic, system) combination of the factorial design.
type Cell struct {
	Topic  string
	System SystemType
}

// Key returns the persisted count-table key for the cell.
func (c Cell) Key() string {
	return c.Topic + "__" + string(c.System)
}

// CellCount pairs a cell with its assignment count.
type CellCount struct {
	Cell  Cell   `json:"-"`
	Key   string `json:"cell"`
	Count int    `json:"count"`
}

// Assignment binds a participant to one cell.
type Assignment struct {
	ParticipantID string     `json:"participant_id"`
	Topic         string     `json:"task_type"`
	SystemType    SystemType `json:"system_type"`
	SearchCase    string     `json:"search_case"`
	SearchTask    string     `json:"search_task"`
	AssignedAt    time.Time  `json:"assigned_at"`
}

// Condition returns the condition label used in log events.
func (a *Assignment) Condition() string {
	return string(a.SystemType)
}

// DefaultTopics returns the study's built-in topics.
func DefaultTopics() []Topic {
	return []Topic{
		{
			Name:       "Nanotechnology",
			SearchCase: "Your friend visited a grocery store. While your friend was standing in front of the fresh corner, your friend overheard some people passing by saying that these days, the nanoparticles used in packaging materials can also mix into the food. You want to check what scientific evidence actually says.",
			SearchTask: "Perform a search to explore evidence about nanotechnology.",
			Keywords:   []string{"nanotechnology", "nanoparticles"},
		},
		{
			Name:       "GMO",
			SearchCase: "Your friend visited a grocery store. While your friend was standing in front of the cereal and snack section, your friend overheard some people talking about how some genetically modified organisms (GMOs) food may disrupt hormones or cause long-term health effects. You want to check what scientific evidence actually says.",
			SearchTask: "Perform a search to explore evidence about GMO foods.",
			Keywords:   []string{"genetically modified organisms", "GMOs", "GMO"},
		},
		{
			Name:       "Cultivated Meat",
			SearchCase: "Your friend visited a grocery store. While your friend was standing in front of the meat section, trying to decide which meat to buy, your friend overheard some people passing by saying that these days, some meat is cultivated meat but is often not labeled properly. You want to check what scientific evidence actually says.",
			SearchTask: "Perform a search to explore evidence about cultivated meat.",
			Keywords:   []string{"cultivated meat"},
		},
	}
}
