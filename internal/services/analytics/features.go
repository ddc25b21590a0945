package analytics

import "EpiPulse/internal/domain/models"

// requireFeatures checks that s carries the rolling columns produced by the
// series preparer.
func requireFeatures(s *models.PreparedSeries) error {
	if s == nil {
		return &models.FeatureMismatchError{Missing: models.FeatureNames}
	}
	if s.Window <= 0 {
		return &models.FeatureMismatchError{Missing: models.FeatureNames[1:]}
	}
	return nil
}
