package electric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmperageFromPowerThreePhase(t *testing.T) {
	a := AmperageFromPower(22000, 3, 230, CurrentTypeAC)
	assert.InDelta(t, 31.88, a, 0.01)
}

func TestAmperageFromPowerDC(t *testing.T) {
	a := AmperageFromPower(50000, 1, 500, CurrentTypeDC)
	assert.InDelta(t, 100, a, 0.001)
}

func TestPowerFromAmperageMatchesScenarioS3(t *testing.T) {
	// spec.md S3: 10 A * 230 V * 3 phases = 6900 W
	w := PowerFromAmperage(10, 230, 3, CurrentTypeAC)
	assert.InDelta(t, 6900, w, 0.001)
}
