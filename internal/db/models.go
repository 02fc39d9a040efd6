package db

import "time"

// Grievance maps grievdedup.grievances — the primary record (spec §3).
type Grievance struct {
	GrievanceID        int64      `gorm:"column:grievance_id;primaryKey;autoIncrement"`
	GrievanceUUID      string     `gorm:"column:grievance_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	BatchID            *int64     `gorm:"column:batch_id;type:bigint"`
	PDFID              *int64     `gorm:"column:pdf_id;type:bigint"`
	SourceFilename     *string    `gorm:"column:source_filename;type:text"`
	PageNumber         *int       `gorm:"column:page_number;type:integer"`
	SubmissionType     string     `gorm:"column:submission_type;type:text;not null;default:text"`
	OriginalText       string     `gorm:"column:original_text;type:text;not null"`
	ProcessedText      string     `gorm:"column:processed_text;type:text;not null;default:''"`
	Status             string     `gorm:"column:status;type:text;not null;default:UNIQUE"`
	SimilarityScore     float64    `gorm:"column:similarity_score;type:double precision;not null;default:0"`
	MatchedGrievanceID *int64     `gorm:"column:matched_grievance_id;type:bigint"`
	LocalDuplicateOf   *int64     `gorm:"column:local_duplicate_of;type:bigint"`
	CosineScore        float64    `gorm:"column:cosine_score;type:double precision;not null;default:0"`
	JaccardScore       float64    `gorm:"column:jaccard_score;type:double precision;not null;default:0"`
	NgramScore         float64    `gorm:"column:ngram_score;type:double precision;not null;default:0"`
	ContextualScore    float64    `gorm:"column:contextual_score;type:double precision;not null;default:0"`
	Category           string     `gorm:"column:category;type:text;not null;default:OTHER"`
	Area               string     `gorm:"column:area;type:text;not null;default:''"`
	LocationDetails    *string    `gorm:"column:location_details;type:text"`
	Processed          bool       `gorm:"column:processed;type:boolean;not null;default:false"`
	CreatedAt          time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Grievance) TableName() string { return "grievdedup.grievances" }

// Embedding maps grievdedup.embeddings — 1:1 with a Grievance.
type Embedding struct {
	EmbeddingID     int64     `gorm:"column:embedding_id;primaryKey;autoIncrement"`
	EmbeddingUUID   string    `gorm:"column:embedding_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	GrievanceID     int64     `gorm:"column:grievance_id;type:bigint;not null;unique"`
	ModelName       string    `gorm:"column:model_name;type:text;not null"`
	ModelVersion    string    `gorm:"column:model_version;type:text;not null"`
	Vector          string    `gorm:"column:vector;type:vector(384);not null"`
	EmbeddedAt      time.Time `gorm:"column:embedded_at;type:timestamptz;not null;default:now()"`
	ServiceEndpoint string    `gorm:"column:service_endpoint;type:text;not null"`
	LatencyMS       *int      `gorm:"column:latency_ms;type:integer"`
}

func (Embedding) TableName() string { return "grievdedup.embeddings" }

// ProcessingBatch maps grievdedup.processing_batches — batch lifecycle (spec §3, §4.10).
type ProcessingBatch struct {
	BatchID            int64      `gorm:"column:batch_id;primaryKey;autoIncrement"`
	BatchUUID          string     `gorm:"column:batch_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Source             string     `gorm:"column:source;type:text;not null;default:api"`
	SubmittedByUserID  *int64     `gorm:"column:submitted_by_user_id;type:bigint"`
	State              string     `gorm:"column:state;type:text;not null;default:pending"`
	TotalPDFs          int        `gorm:"column:total_pdfs;type:integer;not null;default:0"`
	ProcessedPDFs      int        `gorm:"column:processed_pdfs;type:integer;not null;default:0"`
	TotalGrievances    int        `gorm:"column:total_grievances;type:integer;not null;default:0"`
	UniqueCount        int        `gorm:"column:unique_count;type:integer;not null;default:0"`
	DuplicateCount     int        `gorm:"column:duplicate_count;type:integer;not null;default:0"`
	NearDuplicateCount int        `gorm:"column:near_duplicate_count;type:integer;not null;default:0"`
	StartedAt          *time.Time `gorm:"column:started_at;type:timestamptz"`
	CompletedAt        *time.Time `gorm:"column:completed_at;type:timestamptz"`
	ErrorMessage       *string    `gorm:"column:error_message;type:text"`
	CreatedAt          time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (ProcessingBatch) TableName() string { return "grievdedup.processing_batches" }

// DuplicateCluster maps grievdedup.duplicate_clusters (spec §3, §4.8).
type DuplicateCluster struct {
	ClusterID          int64     `gorm:"column:cluster_id;primaryKey;autoIncrement"`
	ClusterUUID        string    `gorm:"column:cluster_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	BatchID            int64     `gorm:"column:batch_id;type:bigint;not null"`
	ClusterType        string    `gorm:"column:cluster_type;type:text;not null"`
	PrimaryGrievanceID int64     `gorm:"column:primary_grievance_id;type:bigint;not null"`
	MemberCount        int       `gorm:"column:member_count;type:integer;not null;default:0"`
	AvgSimilarityScore float64   `gorm:"column:avg_similarity_score;type:double precision;not null;default:0"`
	CreatedAt          time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt          time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (DuplicateCluster) TableName() string { return "grievdedup.duplicate_clusters" }

// ClusterMember maps grievdedup.cluster_members.
type ClusterMember struct {
	ClusterMemberID      int64     `gorm:"column:cluster_member_id;primaryKey;autoIncrement"`
	ClusterMemberUUID    string    `gorm:"column:cluster_member_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ClusterID            int64     `gorm:"column:cluster_id;type:bigint;not null"`
	GrievanceID          int64     `gorm:"column:grievance_id;type:bigint;not null"`
	SimilarityToPrimary  float64   `gorm:"column:similarity_to_primary;type:double precision;not null"`
	CreatedAt            time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ClusterMember) TableName() string { return "grievdedup.cluster_members" }

// AdaptiveThreshold maps grievdedup.adaptive_thresholds — one row per kind (spec §3, §4.9).
type AdaptiveThreshold struct {
	Kind            string     `gorm:"column:kind;type:text;primaryKey"`
	ThresholdUUID   string     `gorm:"column:threshold_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	CurrentValue    float64    `gorm:"column:current_value;type:double precision;not null"`
	MinValue        float64    `gorm:"column:min_value;type:double precision;not null"`
	MaxValue        float64    `gorm:"column:max_value;type:double precision;not null"`
	AdjustmentCount int        `gorm:"column:adjustment_count;type:integer;not null;default:0"`
	LastAdjustedAt  *time.Time `gorm:"column:last_adjusted_at;type:timestamptz"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (AdaptiveThreshold) TableName() string { return "grievdedup.adaptive_thresholds" }

// FeedbackLog maps grievdedup.feedback_logs — reviewer corrections (spec §3, §4.9).
type FeedbackLog struct {
	FeedbackID          int64     `gorm:"column:feedback_id;primaryKey;autoIncrement"`
	FeedbackUUID        string    `gorm:"column:feedback_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	GrievanceID         int64     `gorm:"column:grievance_id;type:bigint;not null"`
	MatchedGrievanceID  *int64    `gorm:"column:matched_grievance_id;type:bigint"`
	OriginalStatus      string    `gorm:"column:original_status;type:text;not null"`
	CorrectedStatus     string    `gorm:"column:corrected_status;type:text;not null"`
	OriginalScore       *float64  `gorm:"column:original_score;type:double precision"`
	AppliedToThreshold  bool      `gorm:"column:applied_to_threshold;type:boolean;not null;default:false"`
	Notes               *string   `gorm:"column:notes;type:text"`
	CreatedAt           time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (FeedbackLog) TableName() string { return "grievdedup.feedback_logs" }

func autoMigrateModels() []any {
	return []any{
		&ProcessingBatch{},
		&Grievance{},
		&Embedding{},
		&DuplicateCluster{},
		&ClusterMember{},
		&AdaptiveThreshold{},
		&FeedbackLog{},
	}
}
