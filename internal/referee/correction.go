package referee

import (
	"fmt"
	"math"

	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
)

// CorrectedAlpha returns the per-test threshold for a family of size m. The
// result is never larger than alpha and never increases with m.
func CorrectedAlpha(c verdict.Correction, alpha float64, m int) (float64, error) {
	if alpha <= 0 || alpha >= 1 {
		return 0, core.NewValidationError("alpha", fmt.Sprintf("%g outside (0,1)", alpha))
	}
	if m < 1 {
		return 0, core.NewValidationError("family_size", "must be at least 1")
	}
	switch c {
	case verdict.CorrectionNone:
		return alpha, nil
	case verdict.CorrectionBonferroni:
		return alpha / float64(m), nil
	case verdict.CorrectionSidak:
		// 1-(1-a)^(1/m) computed without cancellation for small a
		return math.Min(alpha, -math.Expm1(math.Log1p(-alpha)/float64(m))), nil
	default:
		return 0, core.NewValidationError("correction", fmt.Sprintf("unknown correction %q", c))
	}
}
