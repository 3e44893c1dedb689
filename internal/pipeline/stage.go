// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package pipeline

import "slices"

// Stage names a pipeline stage.
type Stage string

const (
	StageRawLoaded      Stage = "RAW_LOADED"
	StageFeaturesBuilt  Stage = "FEATURES_BUILT"
	StageChurnTrained   Stage = "CHURN_TRAINED"
	StageForecastBuilt  Stage = "FORECAST_BUILT"
	StageRecsBuilt      Stage = "RECS_BUILT"
	StageEvaluated      Stage = "EVALUATED"
	StageReportExported Stage = "REPORT_EXPORTED"
)

// Stages lists every stage in execution order. Branch stages share a
// position and are listed alphabetically.
var Stages = []Stage{
	StageRawLoaded,
	StageFeaturesBuilt,
	StageChurnTrained,
	StageForecastBuilt,
	StageRecsBuilt,
	StageEvaluated,
	StageReportExported,
}

// BranchStages are the stages that run concurrently after FEATURES_BUILT.
var BranchStages = []Stage{StageChurnTrained, StageForecastBuilt, StageRecsBuilt}

func (s Stage) String() string { return string(s) }

// IsBranch reports whether s is one of BranchStages.
func (s Stage) IsBranch() bool {
	return slices.Contains(BranchStages, s)
}
