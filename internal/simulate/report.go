package simulate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RenderText formats the report as a human-readable summary for cmd/simulate.
func (r Report) RenderText() string {
	var b strings.Builder

	fmt.Fprintf(&b, "examinees: %d\n", len(r.Examinees))
	fmt.Fprintf(&b, "mean items: %.2f  median items: %.1f\n", r.MeanItems, r.MedianItems)
	fmt.Fprintf(&b, "mean SE: %.4f  mean bias: %+.4f  RMSE: %.4f\n", r.MeanSE, r.MeanBias, r.RMSE)
	fmt.Fprintf(&b, "convergence rate (SE below threshold): %.1f%%\n", r.ConvergenceRate*100)

	b.WriteString("stop reasons:\n")
	for reason, count := range r.StopReasonCounts {
		name := string(reason)
		if name == "" {
			name = "none"
		}
		fmt.Fprintf(&b, "  %-20s %d\n", name, count)
	}

	b.WriteString("quintile bands:\n")
	fmt.Fprintf(&b, "  %-10s %5s %10s %8s %9s %8s\n", "band", "n", "mean_items", "mean_se", "mean_bias", "rmse")
	for _, band := range r.Bands {
		fmt.Fprintf(&b, "  %-10s %5d %10.2f %8.4f %+9.4f %8.4f\n", band.Band, band.N, band.MeanItems, band.MeanSE, band.MeanBias, band.RMSE)
	}

	return b.String()
}

// RenderJSON formats the report as indented JSON.
func (r Report) RenderJSON() (string, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("simulate: failed to marshal report: %w", err)
	}
	return string(out), nil
}
