package client

// Wire types for the gateway contract.

// HealthResponse is the reply to GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// UploadResponse is the reply to POST /v1/upload.
type UploadResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// IndexRequest is the body of POST /v1/index. A nil Directory asks the
// backend to index its default location.
type IndexRequest struct {
	Directory *string `json:"directory"`
}

// IndexResponse is the reply to POST /v1/index.
type IndexResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DocumentInfo describes one document in the backend's authoritative list.
type DocumentInfo struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	UpdatedAt string `json:"updated_at"`
	FileType  string `json:"file_type"`
}

// DocumentListResponse is the reply to GET /v1/documents.
type DocumentListResponse struct {
	Documents []DocumentInfo `json:"documents"`
}

// DeleteResponse is the reply to DELETE /v1/documents/{filename}.
type DeleteResponse struct {
	Status         string `json:"status"`
	Filename       string `json:"filename"`
	DeletedVectors int    `json:"deleted_vectors"`
	DeletedRecords int    `json:"deleted_records"`
}

// QueryRequest is the body of POST /v1/query. A nil MetadataFilter is
// serialized as JSON null, which the backend treats as "no filter"; an empty
// map would mean something else, so callers must pass nil when there are no
// constraints.
type QueryRequest struct {
	Question       string            `json:"question"`
	K              int               `json:"k"`
	MetadataFilter map[string]string `json:"metadata_filter"`
}
