//go:build windows
// +build windows

package snapshot

import (
	"testing"

	ole "github.com/go-ole/go-ole"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeVolumeKeyDriveLetter(t *testing.T) {
	assert.Equal(t, `C:\`, normalizeVolumeKey(`C:`))
	assert.Equal(t, `C:\`, normalizeVolumeKey(`C:\`))
}

func TestNormalizeVolumeKeyVolumeGUID(t *testing.T) {
	guid := `\\?\Volume{12345678-1234-1234-1234-123456789abc}`
	assert.Equal(t, guid+`\`, normalizeVolumeKey(guid))
}

func TestCanonicalFormsDriveLetter(t *testing.T) {
	forms := canonicalForms(`D:\`)
	assert.Contains(t, forms, `D:`)
	assert.Contains(t, forms, `D:\`)
	assert.Contains(t, forms, `\\.\D:`)
}

func TestCanonicalFormsVolumeGUID(t *testing.T) {
	guid := `\\?\Volume{12345678-1234-1234-1234-123456789abc}`
	forms := canonicalForms(guid)
	assert.Contains(t, forms, guid)
	assert.Contains(t, forms, `\\.\Volume{12345678-1234-1234-1234-123456789abc}`)
}

func TestNormalizeSnapshotPathRewritesObjectNamespace(t *testing.T) {
	raw := `\??\GLOBALROOT\Device\HarddiskVolumeShadowCopy12`
	assert.Equal(t, `\\.\GLOBALROOT\Device\HarddiskVolumeShadowCopy12`, normalizeSnapshotPath(raw))
}

func TestNormalizeSnapshotPathLeavesOtherPrefixesAlone(t *testing.T) {
	raw := `\\.\HarddiskVolumeShadowCopy12`
	assert.Equal(t, raw, normalizeSnapshotPath(raw))
}

func TestCancelledReportsClosedChannel(t *testing.T) {
	ch := make(chan struct{})
	assert.False(t, cancelled(ch))
	close(ch)
	assert.True(t, cancelled(ch))
}

func TestCancelledNilChannelNeverFires(t *testing.T) {
	assert.False(t, cancelled(nil))
}

func TestIsBenignComInitAcceptsSOkAndSFalse(t *testing.T) {
	assert.True(t, isBenignComInit(ole.NewError(0)))
	assert.True(t, isBenignComInit(ole.NewError(1)))
	assert.False(t, isBenignComInit(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "not an ole error" }
