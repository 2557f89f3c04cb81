package models

import (
	"fmt"
	"time"
)

// CreditOperation enumerates the ledger transaction kinds. History filters
// are validated against this set.
type CreditOperation string

const (
	OpAnalysis        CreditOperation = "analysis"
	OpSceneProcessing CreditOperation = "scene_processing"
	OpReprocessing    CreditOperation = "reprocessing"
	OpSilentRemover   CreditOperation = "silent_remover"
	OpObjectDetection CreditOperation = "object_detection"
	OpSceneOriginals  CreditOperation = "scene_originals"
	OpAdminAdjustment CreditOperation = "admin_adjustment"
)

var allCreditOperations = []CreditOperation{
	OpAnalysis, OpSceneProcessing, OpReprocessing, OpSilentRemover,
	OpObjectDetection, OpSceneOriginals, OpAdminAdjustment,
}

func ParseCreditOperation(s string) (CreditOperation, error) {
	for _, op := range allCreditOperations {
		if CreditOperation(s) == op {
			return op, nil
		}
	}
	return "", fmt.Errorf("invalid operation_type %q", s)
}

// TransactionState tracks the reservation lifecycle.
type TransactionState string

const (
	TxReserved TransactionState = "reserved"
	TxCharged  TransactionState = "charged"
	TxRefunded TransactionState = "refunded"
)

// CreditTransaction is one append-only ledger record. Credits are positive
// for debits.
type CreditTransaction struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	Operation    CreditOperation  `json:"operation_type"`
	State        TransactionState `json:"state"`
	Credits      int              `json:"credits_amount"`
	Description  string           `json:"description"`
	BalanceAfter int              `json:"balance_after"`
	VideoID      string           `json:"video_id,omitempty"`
	SceneIDs     []uint32         `json:"scene_ids,omitempty"`
	// ArtifactKeys reference the output clips when the reservation is
	// converted to a charge.
	ArtifactKeys []string `json:"artifact_keys,omitempty"`
}

// Per-scene, per-style base cost and the add-on surcharges.
const (
	StyleBaseCost            = 10
	SilentRemoverAddonCost   = 5
	ObjectDetectionAddonCost = 5
	CinematicTierSurcharge   = 5
)

// JobCost computes the declared cost of a job from its tier, style set,
// add-ons, and scene count.
func JobCost(job Job) int {
	scenes := map[uint32]bool{}
	cost := 0
	for _, t := range job.Targets {
		scenes[t.SceneID] = true
		cost += StyleBaseCost
		if t.Style == StyleCinematic {
			cost += CinematicTierSurcharge
		}
	}
	sceneCount := len(scenes)
	if job.SilentRemoval {
		cost += SilentRemoverAddonCost * sceneCount
	}
	if job.ObjectDetection {
		cost += ObjectDetectionAddonCost * sceneCount
	}
	return cost
}

// MonthKey formats the billing month bucket.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
