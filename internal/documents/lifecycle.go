package documents

import (
	"fmt"

	"docsign/internal/apperr"
	"docsign/internal/models"
)

// CanTransition reports whether the canonical flow allows moving from one
// status to another. Re-sending a sent document is allowed; nothing leaves
// signed.
func CanTransition(from, to models.DocumentStatus) bool {
	switch from {
	case models.StatusDraft:
		return to == models.StatusFinalized
	case models.StatusFinalized:
		return to == models.StatusSent || to == models.StatusSigned
	case models.StatusSent:
		return to == models.StatusSent || to == models.StatusSigned
	case models.StatusSigned:
		return false
	}
	return false
}

// NextStatuses lists the canonical targets reachable from a status.
func NextStatuses(from models.DocumentStatus) []models.DocumentStatus {
	var out []models.DocumentStatus
	for _, to := range models.AllDocumentStatus {
		if CanTransition(from, to) {
			out = append(out, to)
		}
	}
	return out
}

func checkTransition(op string, from, to models.DocumentStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	if from == models.StatusSigned && to == models.StatusSigned {
		return apperr.Conflict(op, apperr.ErrAlreadySigned)
	}
	return apperr.Conflict(op, fmt.Errorf("%w: %s → %s", apperr.ErrInvalidTransition, from, to))
}
