package focus

import "slices"

const (
	// CalibrationWindow is the number of open-eye samples (about 3s at the analysis tick).
	CalibrationWindow = 6
	// CalibrationFactor scales the mean open-eye EAR into the closure threshold.
	CalibrationFactor = 0.72
)

// Calibration derives a personal eye-closure threshold from the first
// CalibrationWindow EAR samples. The threshold is frozen once Complete.
type Calibration struct {
	Samples   []float64 `json:"-"`
	Threshold float64   `json:"earThreshold"`
	Complete  bool      `json:"done"`
}

// Add records one sample and reports whether calibration is complete.
// Samples offered after completion are ignored.
func (c *Calibration) Add(ear float64) bool {
	if c.Complete {
		return true
	}
	// Clip so a copied state never shares a backing array with this one.
	c.Samples = append(slices.Clip(c.Samples), ear)
	if len(c.Samples) < CalibrationWindow {
		return false
	}
	var sum float64
	for _, s := range c.Samples {
		sum += s
	}
	c.Threshold = sum / float64(len(c.Samples)) * CalibrationFactor
	c.Complete = true
	return true
}

// Progress is the filled fraction of the calibration window in [0,1].
func (c Calibration) Progress() float64 {
	if c.Complete {
		return 1
	}
	return float64(len(c.Samples)) / CalibrationWindow
}
