//go:build windows
// +build windows

// Package selftest implements the headless check battery driven by
// "chronos --selftest": a fixed set of environment, codec, sidecar, and
// allocation-range checks that require no operator interaction, plus an
// optional live-enumeration pass.
package selftest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chronos-imaging/chronos/cerrors"
	"github.com/chronos-imaging/chronos/codec"
	"github.com/chronos-imaging/chronos/config"
	"github.com/chronos-imaging/chronos/diskenum"
	log "github.com/chronos-imaging/chronos/logger"
	"github.com/chronos-imaging/chronos/model"
	"github.com/chronos-imaging/chronos/probe"
	"github.com/chronos-imaging/chronos/sidecar"
)

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name   string
	Passed bool
	Detail string
}

// Report is the ordered outcome of a full selftest run.
type Report struct {
	Results []CheckResult
}

// FailureCount returns how many checks in the report failed; this is used
// directly as the process exit code.
func (r Report) FailureCount() int {
	n := 0
	for _, c := range r.Results {
		if !c.Passed {
			n++
		}
	}
	return n
}

// String renders the report as the ">>>>> Name" / "PASS"|"FAIL: detail"
// text format written to the console and, when requested, to a report file.
func (r Report) String() string {
	var b strings.Builder
	for _, c := range r.Results {
		fmt.Fprintf(&b, ">>>>> %s\n", c.Name)
		if c.Passed {
			b.WriteString("PASS\n")
		} else {
			fmt.Fprintf(&b, "FAIL: %s\n", c.Detail)
		}
	}
	fmt.Fprintf(&b, "%d/%d checks passed\n", len(r.Results)-r.FailureCount(), len(r.Results))
	return b.String()
}

func (r *Report) add(result CheckResult) {
	r.Results = append(r.Results, result)
}

// Run executes every check and, when opts.ReportPath is set, writes the
// rendered report there in addition to returning it.
func Run(opts config.SelftestOptions) (Report, error) {
	log.Trace(">>>>> Run")
	defer log.Trace("<<<<< Run")

	var report Report
	report.add(checkEnvironmentProbe())
	for level := codec.MinLevel; level <= codec.MaxLevel; level++ {
		report.add(checkCodecRoundTrip(level))
	}
	report.add(checkSidecarRoundTrip())
	report.add(checkAllocatedRangeInvariants())
	if opts.IncludeLive {
		report.add(checkLiveEnumeration())
	}

	if opts.ReportPath != "" {
		if err := os.WriteFile(opts.ReportPath, []byte(report.String()), 0o644); err != nil {
			return report, cerrors.Wrap(cerrors.IoFailed, err)
		}
	}
	return report, nil
}

func checkEnvironmentProbe() CheckResult {
	caps := probe.Detect()
	if caps.IsRestrictedEnvironment && caps.HasVirtualDiskAPI {
		return CheckResult{
			Name:   "EnvironmentProbe",
			Passed: false,
			Detail: "restricted environment reported virtdisk.dll present, which the boot-media builds never carry",
		}
	}
	return CheckResult{Name: "EnvironmentProbe", Passed: true, Detail: fmt.Sprintf("%+v", caps)}
}

func checkCodecRoundTrip(level int) CheckResult {
	name := fmt.Sprintf("CodecRoundTrip/level=%d", level)

	data := make([]byte, 256*1024)
	for i := range data {
		data[i] = byte(i % 251)
	}

	out, err := codec.RoundTrip(data, level)
	if err != nil {
		return CheckResult{Name: name, Passed: false, Detail: err.Error()}
	}
	if len(out) != len(data) {
		return CheckResult{Name: name, Passed: false, Detail: fmt.Sprintf("length mismatch: got %d, want %d", len(out), len(data))}
	}
	for i := range data {
		if out[i] != data[i] {
			return CheckResult{Name: name, Passed: false, Detail: fmt.Sprintf("byte mismatch at offset %d", i)}
		}
	}
	return CheckResult{Name: name, Passed: true}
}

func checkSidecarRoundTrip() CheckResult {
	const name = "SidecarRoundTrip"

	path := filepath.Join(os.TempDir(), "chronos-selftest.img")
	defer sidecar.Remove(path)

	used := uint64(1 << 20)
	want := model.ImageSidecar{
		ChronosVersion:    "selftest",
		CreatedAtUTC:      time.Now().UTC().Truncate(time.Second),
		PartitionStyle:    model.PartitionStyleGPT,
		DiskSizeBytes:     10 << 30,
		SourceDiskNumber:  0,
		LogicalSectorSize: 512,
		Partitions: []model.SidecarPartition{
			{PartitionNumber: 1, Size: 100 << 20, Offset: 1 << 20, DriveLetter: "C:", UsedSpace: &used},
		},
		Ranges: []model.SidecarRange{
			{Offset: 0, UncompressedLength: 1 << 20, CompressedLength: 4096},
		},
	}

	if err := sidecar.Write(path, want); err != nil {
		return CheckResult{Name: name, Passed: false, Detail: err.Error()}
	}
	got, err := sidecar.Read(path)
	if err != nil {
		return CheckResult{Name: name, Passed: false, Detail: err.Error()}
	}

	if got.PartitionStyle != want.PartitionStyle || len(got.Partitions) != len(want.Partitions) || len(got.Ranges) != len(want.Ranges) {
		return CheckResult{Name: name, Passed: false, Detail: "round-tripped sidecar did not match the original"}
	}
	return CheckResult{Name: name, Passed: true}
}

func checkAllocatedRangeInvariants() CheckResult {
	const name = "AllocatedRangeInvariants"

	a := model.AllocatedRange{OffsetBytes: 0, LengthBytes: 4096}
	b := model.AllocatedRange{OffsetBytes: 4096, LengthBytes: 4096}
	c := model.AllocatedRange{OffsetBytes: 16384, LengthBytes: 4096}

	if a.End() != 4096 {
		return CheckResult{Name: name, Passed: false, Detail: "End() did not return OffsetBytes+LengthBytes"}
	}
	if !a.AdjacentOrOverlapping(b) {
		return CheckResult{Name: name, Passed: false, Detail: "adjacent ranges were not reported as adjacent"}
	}
	if a.AdjacentOrOverlapping(c) {
		return CheckResult{Name: name, Passed: false, Detail: "disjoint ranges were reported as adjacent"}
	}
	return CheckResult{Name: name, Passed: true}
}

func checkLiveEnumeration() CheckResult {
	const name = "LiveEnumeration"

	enum := diskenum.New()
	disks, err := enum.ListDisks()
	if err != nil {
		return CheckResult{Name: name, Passed: false, Detail: err.Error()}
	}
	for _, d := range disks {
		if _, err := enum.ListPartitions(d.Index); err != nil {
			return CheckResult{Name: name, Passed: false, Detail: fmt.Sprintf("disk %d: %v", d.Index, err)}
		}
	}
	return CheckResult{Name: name, Passed: true, Detail: fmt.Sprintf("%d disk(s) enumerated", len(disks))}
}
