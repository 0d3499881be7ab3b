package types

// UploadResult is the response to a primary file upload.
type UploadResult struct {
	FileID        string `json:"file_id"`
	UploadedFiles int    `json:"uploaded_files"`
}

// Meta describes the columns of an uploaded dataset.
type Meta struct {
	Columns     []string `json:"columns"`
	AgentColumn string   `json:"agent_col,omitempty"`
	DateColumn  string   `json:"date_col,omitempty"`
}

// DateBounds holds the earliest and latest dates found in the date column.
// Both are ISO strings and may be empty when the dataset has no date column.
type DateBounds struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// Dataset is the client's view of an uploaded dataset. The server owns the
// data; the client only keeps the identifier and the column metadata.
type Dataset struct {
	FileID      string   `json:"file_id"`
	Columns     []string `json:"columns"`
	AgentColumn string   `json:"agent_col,omitempty"`
	DateColumn  string   `json:"date_col,omitempty"`
	MinDate     string   `json:"min_date,omitempty"`
	MaxDate     string   `json:"max_date,omitempty"`
}

// QueryPayload is the body of a dashboard query.
type QueryPayload struct {
	Column    string `json:"column"`
	Value     string `json:"value"`
	Mode      string `json:"mode"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
}

// QueryResult is one page of filtered rows.
type QueryResult struct {
	Rows       []Row  `json:"rows"`
	Count      int    `json:"count"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	DateColumn string `json:"date_col,omitempty"`
}

// AgentsRequest is the body of an agent listing call.
type AgentsRequest struct {
	Search    string `json:"search"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// AgentsResult lists the distinct agents found in the agent column.
type AgentsResult struct {
	Agents     []string `json:"agents"`
	Count      int      `json:"count"`
	DateColumn string   `json:"date_col,omitempty"`
}

// Download is a binary payload returned by an export or report download.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
}
