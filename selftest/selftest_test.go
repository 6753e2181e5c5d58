//go:build windows
// +build windows

package selftest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportFailureCountAndString(t *testing.T) {
	var r Report
	r.add(CheckResult{Name: "A", Passed: true})
	r.add(CheckResult{Name: "B", Passed: false, Detail: "boom"})
	r.add(CheckResult{Name: "C", Passed: true})

	assert.Equal(t, 1, r.FailureCount())

	out := r.String()
	assert.Contains(t, out, ">>>>> A\nPASS\n")
	assert.Contains(t, out, ">>>>> B\nFAIL: boom\n")
	assert.Contains(t, out, "2/3 checks passed")
}

func TestCheckCodecRoundTrip(t *testing.T) {
	result := checkCodecRoundTrip(3)
	assert.True(t, result.Passed, result.Detail)
}

func TestCheckAllocatedRangeInvariants(t *testing.T) {
	result := checkAllocatedRangeInvariants()
	assert.True(t, result.Passed, result.Detail)
}

func TestCheckSidecarRoundTrip(t *testing.T) {
	result := checkSidecarRoundTrip()
	assert.True(t, result.Passed, result.Detail)
}
