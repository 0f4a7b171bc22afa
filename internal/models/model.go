package models

// AnalyzeBase64Request is the JSON body for base64-encoded image analysis
type AnalyzeBase64Request struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	Filename    string `json:"filename,omitempty"`
}

// ELAResult holds the error-level-analysis finding for one image.
// Mean/Max/Std describe the per-pixel difference against a re-encoded copy.
type ELAResult struct {
	Mean       float64 `json:"mean"`
	Max        float64 `json:"max"`
	Std        float64 `json:"std"`
	Suspicious bool    `json:"suspicious"`
	Quality    int     `json:"quality,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// MetadataResult holds the capture-metadata finding for one image
type MetadataResult struct {
	Format      string `json:"format,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Size        []int  `json:"size,omitempty"` // [width, height]
	HasEXIF     bool   `json:"has_exif"`
	Software    string `json:"software,omitempty"`
	DeviceMake  string `json:"device_make,omitempty"`
	DeviceModel string `json:"device_model,omitempty"`
	DateTime    string `json:"datetime,omitempty"`
	Suspicious  bool   `json:"suspicious"`
	Reason      string `json:"suspicious_reason,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NoiseResult holds the sensor-noise finding for one image
type NoiseResult struct {
	Variance   float64 `json:"variance"`
	MeanAbs    float64 `json:"mean_abs"`
	Suspicious bool    `json:"suspicious"`
	Method     string  `json:"method,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// AnalysisResult is the full per-request analysis record returned on success.
// Error is always null on this shape; failed requests are reported as ErrorResult.
type AnalysisResult struct {
	ID               string            `json:"id"`
	Error            *string           `json:"error"`
	Prediction       string            `json:"prediction"`
	Confidence       float64           `json:"confidence"` // 0-100, forensic-adjusted
	RealProb         float64           `json:"real_prob"`
	FakeProb         float64           `json:"fake_prob"`
	FlagReview       bool              `json:"flag_review"`
	ModelVotes       map[string]string `json:"model_votes,omitempty"`
	MLError          string            `json:"ml_error,omitempty"`
	ELA              *ELAResult        `json:"ela"`
	Metadata         *MetadataResult   `json:"metadata"`
	Noise            *NoiseResult      `json:"noise"`
	ForensicFlags    int               `json:"forensic_flags"`
	ForensicVerdict  string            `json:"forensic_verdict"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
}

// ErrorResult is the failure shape for an analysis request
type ErrorResult struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ReadyResponse reports whether the analysis pipeline can serve requests
type ReadyResponse struct {
	MLReady            bool `json:"mlReady"`
	ForensicsAvailable bool `json:"forensicsAvailable"`
}

// ModelListResponse represents the list of loaded classifier models
type ModelListResponse struct {
	Models []string `json:"models"`
}

// StatsResponse represents service statistics
type StatsResponse struct {
	TotalAnalyses      int64   `json:"total_analyses"`
	FabricatedDetected int64   `json:"fabricated_detected"`
	FlaggedForReview   int64   `json:"flagged_for_review"`
	AvgResponseTimeMs  float64 `json:"avg_response_time_ms"`
}

// ErrorResponse represents a transport-level error (bad request body, auth)
type ErrorResponse struct {
	Error string `json:"error"`
}
