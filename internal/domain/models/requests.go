package models

// Requests for the outbreak HTTP endpoints and the Kafka request topic.

type AnalyzeRequest struct {
	Country     string `json:"country" validate:"required,max=128"`
	Disease     string `json:"disease" validate:"required,max=64"`
	DataSource  string `json:"data_source" default:"owid" validate:"oneof=owid csv clickhouse"`
	CSVFilename string `json:"csv_filename" validate:"required_if=DataSource csv,omitempty,max=255"`
	Method      string `json:"method" default:"prophet" validate:"oneof=prophet simple"`
	Horizon     int    `json:"horizon" default:"14" validate:"gte=7,lte=90"`
	StartDate   string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type CountriesRequest struct {
	DataSource  string `query:"data_source" default:"owid" validate:"oneof=owid csv clickhouse"`
	CSVFilename string `query:"csv_filename" validate:"omitempty,max=255"`
}
