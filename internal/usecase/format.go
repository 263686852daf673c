package usecase

import (
	"encoding/json"
	"fmt"

	"github.com/eliteGoblin/profprune/internal/domain"
)

// DecodeRunResults restores the per-profile outcome stored with a run record.
func DecodeRunResults(record domain.RunRecord) (RunResults, error) {
	var results RunResults
	if err := json.Unmarshal([]byte(record.ResultsJSON), &results); err != nil {
		return RunResults{}, fmt.Errorf("failed to decode results of run %s: %w", record.ID, err)
	}
	return results, nil
}
