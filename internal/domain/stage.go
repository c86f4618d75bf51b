package domain

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageUploadArtifact Stage = "upload_artifact"
	StageUploadMetadata Stage = "upload_metadata"
	StageSubmit         Stage = "submit_transaction"
	StageConfirm        Stage = "await_confirmation"
	StagePersist        Stage = "persist_record"
)

// Stages lists the issuance pipeline in execution order.
var Stages = []Stage{
	StageUploadArtifact,
	StageUploadMetadata,
	StageSubmit,
	StageConfirm,
	StagePersist,
}

// Progress is what an issuance attempt made externally visible before it stopped.
// Locators are pinned content; TxHash is a broadcast transaction.
type Progress struct {
	ArtifactLocator Locator `json:"artifact_cid,omitempty"`
	MetadataLocator Locator `json:"metadata_cid,omitempty"`
	TxHash          string  `json:"transaction,omitempty"`
}

func (p Progress) IsZero() bool {
	return p.ArtifactLocator == "" && p.MetadataLocator == "" && p.TxHash == ""
}

// StageError reports the pipeline stage that failed along with the partial progress
// reached before it, so callers can resume instead of restarting.
type StageError struct {
	Stage    Stage
	Progress Progress
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func NewStageError(stage Stage, progress Progress, err error) *StageError {
	return &StageError{Stage: stage, Progress: progress, Err: err}
}

func AsStageError(err error) (*StageError, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr, true
	}
	return nil, false
}
