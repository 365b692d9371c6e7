package api

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Port        int
	Bind        string
	AdminAPIKey string
	RootDir     string
}

// APIResponse is the standard JSON envelope for every handler.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// QueryResult is one entry returned by a bbox query.
type QueryResult struct {
	MBR   [4]float64 `json:"mbr"`
	DocID string     `json:"doc_id"`
	Value string     `json:"value,omitempty"`
}

// QueryResponse wraps the entries a bbox query found plus the sequence
// the snapshot they came from actually reflects.
type QueryResponse struct {
	Seq     uint64        `json:"seq"`
	Results []QueryResult `json:"results"`
}

// DesignInfo reports a design document group's current state.
type DesignInfo struct {
	DesignDocID string `json:"design_doc_id"`
	Signature   string `json:"signature"`
	CurrentSeq  uint64 `json:"current_seq"`
	PurgeSeq    uint64 `json:"purge_seq"`
	Indices     int    `json:"indices"`
}
