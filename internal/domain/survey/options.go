package survey

// Options names the tables each survey kind is written to.
type Options struct {
	StudyID          string
	PreTable         string
	PostTable        string
	DemographicTable string
}

func (o Options) withDefaults() Options {
	if o.PreTable == "" {
		o.PreTable = "Pre-Survey"
	}
	if o.PostTable == "" {
		o.PostTable = "post_survey"
	}
	if o.DemographicTable == "" {
		o.DemographicTable = "Demographic"
	}
	return o
}
