package manifest

// Manifest describes one conversion run and where its outputs went.
type Manifest struct {
	Version     int     `json:"version"`
	GeneratedAt string  `json:"generated_at"`
	RunID       string  `json:"run_id"`
	Format      string  `json:"format"`
	BasePath    string  `json:"base_path"`
	Entries     []Entry `json:"entries"`
	Stats       Stats   `json:"stats"`
}

// Entry is one input's result, in input order.
type Entry struct {
	Source     string `json:"source"`
	SourceSize int64  `json:"source_size"`
	Status     string `json:"status"` // "ok" or "failed"

	Output string `json:"output,omitempty"` // relative to base_path
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Size   int64  `json:"size,omitempty"`
	Hash   string `json:"hash,omitempty"` // first 16 hex chars of xxhash64

	ErrorKind string `json:"error_kind,omitempty"` // "decode_error", "encode_error"
	Error     string `json:"error,omitempty"`
}

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Stats aggregates run metrics.
type Stats struct {
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
	Succeeded        int   `json:"succeeded"`
	Failed           int   `json:"failed"`
}

// SupportedManifestVersion is the current schema version.
const SupportedManifestVersion = 1

// FileName is the manifest's name inside an output directory.
const FileName = "imgconv.manifest.json"
