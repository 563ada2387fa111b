package app

// FailurePolicy says what a failed stage does to the operation running it.
type FailurePolicy int

const (
	// PolicyAbort ends the operation with the stage error.
	PolicyAbort FailurePolicy = iota
	// PolicyDegrade logs the failure and continues with the stage's zero value.
	PolicyDegrade
	// PolicyIsolate records the failure against one item; sibling items continue.
	PolicyIsolate
)

func (p FailurePolicy) String() string {
	switch p {
	case PolicyAbort:
		return "abort"
	case PolicyDegrade:
		return "degrade"
	case PolicyIsolate:
		return "isolate"
	default:
		return "unknown"
	}
}

// StageResult is the outcome of one pipeline stage: either a value or an
// error, tagged with the policy that governs the error.
type StageResult[T any] struct {
	Stage  string
	Value  T
	Err    error
	Policy FailurePolicy
}

func (r StageResult[T]) OK() bool {
	return r.Err == nil
}

// Fatal reports whether the failure must end the enclosing operation.
func (r StageResult[T]) Fatal() bool {
	return r.Err != nil && r.Policy == PolicyAbort
}

func runStage[T any](stage string, policy FailurePolicy, fn func() (T, error)) StageResult[T] {
	value, err := fn()
	if err != nil {
		var zero T
		value = zero
	}
	return StageResult[T]{Stage: stage, Value: value, Err: err, Policy: policy}
}

// QueryPolicy configures how each stage of a query reacts to failure.
// Generation always aborts. The zero value is replaced by DefaultQueryPolicy.
type QueryPolicy struct {
	PersistUser      FailurePolicy
	Embed            FailurePolicy
	Retrieve         FailurePolicy
	PersistAssistant FailurePolicy
}

func DefaultQueryPolicy() QueryPolicy {
	return QueryPolicy{
		PersistUser:      PolicyAbort,
		Embed:            PolicyAbort,
		Retrieve:         PolicyDegrade,
		PersistAssistant: PolicyDegrade,
	}
}

// IngestPolicy configures how ingestion reacts to failure. The zero value is
// replaced by DefaultIngestPolicy.
type IngestPolicy struct {
	StoreDocument FailurePolicy
	Chunk         FailurePolicy
}

func DefaultIngestPolicy() IngestPolicy {
	return IngestPolicy{
		StoreDocument: PolicyAbort,
		Chunk:         PolicyIsolate,
	}
}

// QueryState is the position of a query in its lifecycle.
type QueryState int

const (
	QueryReceived QueryState = iota
	QueryRejected
	QueryUserPersisted
	QueryEmbedded
	QueryEmbeddingFailed
	QueryRetrieved
	QueryRetrievalFailed
	QueryGenerating
	QueryCompleted
	QueryGenerationFailed
	QueryCancelled
)

var queryStateNames = map[QueryState]string{
	QueryReceived:         "received",
	QueryRejected:         "rejected",
	QueryUserPersisted:    "user_persisted",
	QueryEmbedded:         "embedded",
	QueryEmbeddingFailed:  "embedding_failed",
	QueryRetrieved:        "retrieved",
	QueryRetrievalFailed:  "retrieval_failed",
	QueryGenerating:       "generating",
	QueryCompleted:        "completed",
	QueryGenerationFailed: "generation_failed",
	QueryCancelled:        "cancelled",
}

func (s QueryState) String() string {
	if name, ok := queryStateNames[s]; ok {
		return name
	}
	return "unknown"
}
