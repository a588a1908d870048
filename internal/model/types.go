// Package model holds the data-model entities shared across the ingestion,
// indexing, retrieval, and sync components.
package model

import "time"

// SourceSpec identifies one of the source families plus its family-specific
// connection/path/credential payload. The core treats Params as opaque; only
// the matching connector interprets it.
type SourceSpec struct {
	Family string            `json:"family"` // "local_fs" | "s3" | "gcs" | ... (see connectors package)
	Params map[string]string `json:"params"`
}

// Document is the unit produced by a connector and consumed by the parser.
type Document struct {
	SourceID    string
	LogicalPath string
	DisplayName string
	MimeType    string
	Bytes       []byte // set when the connector yields inline content
	LocalPath   string // set when the connector yields a path to a temp file
	Metadata    map[string]string
}

// ParsedDocument is what the parser adapter produces from a Document.
type ParsedDocument struct {
	Markdown   string
	Plaintext  string
	Metadata   map[string]string
	ParserName string
	ParseMode  string
	// Language is a best-effort hint (the local parser reports "text" when
	// neither Go nor markdown is detected); no per-language chunking
	// strategy consumes it.
	Language string
	// HasTables reports whether the parser's metadata indicated one or more
	// tables, used by extraction_format=auto.
	HasTables bool
}

// Chunk is the atomic unit of indexing and retrieval.
type Chunk struct {
	ChunkID     string
	DocID       string
	Text        string
	StartOffset int
	EndOffset   int
	Metadata    map[string]string
}

// Embedding is a chunk's vector representation.
type Embedding struct {
	ChunkID string
	Vector  []float32
}

// Triple is a typed (subject, predicate, object) relation extracted from a
// chunk.
type Triple struct {
	SubjectLabel string
	SubjectType  string
	Predicate    string
	ObjectLabel  string
	ObjectType   string
	ChunkID      string
	DocID        string
}

// Schema declares the entity types, relation types, and allowed
// (subj_type, pred, obj_type) tuples a KG extractor may constrain itself to.
type Schema struct {
	Name               string   `yaml:"name"`
	EntityTypes        []string `yaml:"entity_types"`
	RelationTypes      []string `yaml:"relation_types"`
	ValidationPairs    []ValidationPair `yaml:"validation_pairs"`
	Strict             bool     `yaml:"strict"`
	MaxTriplesPerChunk int      `yaml:"max_triples_per_chunk"`
}

// ValidationPair is one allowed (subject_type, predicate, object_type)
// tuple under a strict schema.
type ValidationPair struct {
	SubjectType string `yaml:"subject_type"`
	Predicate   string `yaml:"predicate"`
	ObjectType  string `yaml:"object_type"`
}

// Allows reports whether a triple's types satisfy any validation pair. A
// non-strict schema allows everything.
func (s Schema) Allows(subjectType, predicate, objectType string) bool {
	if !s.Strict {
		return true
	}
	for _, p := range s.ValidationPairs {
		if p.SubjectType == subjectType && p.Predicate == predicate && p.ObjectType == objectType {
			return true
		}
	}
	return false
}

// Phase is one state in an ingestion run's state machine.
type Phase string

const (
	PhaseQueued          Phase = "queued"
	PhaseParsing         Phase = "parsing"
	PhaseChunking        Phase = "chunking"
	PhaseVectorizing     Phase = "vectorizing"
	PhaseIndexingLexical Phase = "indexing_lexical"
	PhaseExtractingGraph Phase = "extracting_graph"
	PhaseFinalizing      Phase = "finalizing"
	PhaseDone            Phase = "done"
	PhaseCancelled       Phase = "cancelled"
	PhaseFailed          Phase = "failed"
)

// FileProgress tracks one file's progress within a run.
type FileProgress struct {
	Phase      Phase      `json:"phase"`
	Percent    int        `json:"percent"`
	BytesTotal int64      `json:"bytes_total,omitempty"`
	BytesDone  int64      `json:"bytes_done,omitempty"`
	Error      *FileError `json:"error,omitempty"`
}

// FileError records a file-level failure kind and message for status
// reporting (kept serializable; not the Go error type itself).
type FileError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RunCounters tallies chunks/triples/entities/relations written by a run.
type RunCounters struct {
	Chunks    int `json:"chunks"`
	Triples   int `json:"triples"`
	Entities  int `json:"entities"`
	Relations int `json:"relations"`
}

// IngestRun is the materialized status record for one ingestion invocation.
type IngestRun struct {
	RunID           string               `json:"run_id"`
	SourceSpec      SourceSpec           `json:"source_spec"`
	Phase           Phase                `json:"phase"`
	Percent         int                  `json:"percent"`
	FilesTotal      int                  `json:"files_total"`
	FilesDone       int                  `json:"files_done"`
	FilesInProgress []string             `json:"files_in_progress"`
	CancelFlag      bool                 `json:"cancel_flag"`
	StartedAt       time.Time            `json:"started_at"`
	CompletedAt     time.Time            `json:"completed_at,omitempty"`
	ErrorKind       string               `json:"error_kind,omitempty"`
	Counters        RunCounters          `json:"counters"`
	GraphPartial    bool                 `json:"graph_partial"`
	PerFile         map[string]*FileProgress `json:"per_file"`
}

// DatasourceConfig is the persisted configuration for an incrementally
// synced source.
type DatasourceConfig struct {
	ConfigID            string `json:"config_id"`
	SourceType          string `json:"source_type"`
	ParamsJSON          string `json:"params_json"`
	RefreshIntervalS    int    `json:"refresh_interval_s"`
	ChangeStreamEnabled bool   `json:"change_stream_enabled"`
	SkipGraph           bool   `json:"skip_graph"`
	Active              bool   `json:"active"`
	LastSyncOrdinal     int64  `json:"last_sync_ordinal"`
	LastSyncStatus      string `json:"last_sync_status"`
}

// DocumentState is the persisted watermark row for one document within a
// synced DatasourceConfig.
type DocumentState struct {
	DocID          string    `json:"doc_id"`
	ConfigID       string    `json:"config_id"`
	SourcePath     string    `json:"source_path"`
	SourceID       string    `json:"source_id"`
	Ordinal        int64     `json:"ordinal"`
	ContentHash    string    `json:"content_hash"`
	VectorSyncedAt time.Time `json:"vector_synced_at"`
	SearchSyncedAt time.Time `json:"search_synced_at"`
	GraphSyncedAt  time.Time `json:"graph_synced_at"`
}

// ChangeEventKind classifies a ChangeEvent from a connector's change stream.
type ChangeEventKind string

const (
	ChangeAdd    ChangeEventKind = "add"
	ChangeModify ChangeEventKind = "modify"
	ChangeDelete ChangeEventKind = "delete"
)

// ChangeEvent is one item yielded by a connector's fetch_changes stream.
type ChangeEvent struct {
	Change     ChangeEventKind `json:"change"`
	SourcePath string          `json:"source_path"`
	SourceID   string          `json:"source_id"`
	ModifiedAt time.Time       `json:"modified_at"`
	Ordinal    int64           `json:"ordinal"`
}

// RankedNode is one result returned by the hybrid retriever.
type RankedNode struct {
	ChunkID           string             `json:"chunk_id"`
	Text              string             `json:"text"`
	FusedScore        float64            `json:"fused_score"`
	PerModalityScores map[string]float64 `json:"per_modality_scores"`
	DocID             string             `json:"doc_id"`
	DisplayName       string             `json:"display_name"`
	LogicalPath       string             `json:"logical_path"`
}
