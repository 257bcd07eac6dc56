package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRawJob() RawJob {
	return RawJob{
		PRNumber:       42,
		PRTitle:        strPtr("fix: handle nil pointer"),
		PRBody:         strPtr("see issue #1"),
		RepoFullName:   "octo/widgets",
		CloneURL:       "https://github.com/octo/widgets.git",
		HeadRef:        "feature/fix",
		HeadSHA:        "0123456789abcdef0123456789abcdef01234567",
		BaseRef:        "main",
		BaseSHA:        "abcdef0123456789abcdef0123456789abcdef01",
		PRAuthor:       strPtr("octocat"),
		InstallationID: 99,
		EnqueuedAt:     strPtr("2026-07-31T12:00:00Z"),
	}
}

func TestValidateJob_HappyPath(t *testing.T) {
	job, err := ValidateJob(validRawJob())
	require.NoError(t, err)
	assert.Equal(t, "octo/widgets", job.RepoFullName)
	assert.Equal(t, 42, job.PRNumber)
	assert.Equal(t, "main", job.BaseRef)
	assert.Equal(t, "octocat", job.PRAuthor)
}

func TestValidateJob_RejectsBadRepoFullName(t *testing.T) {
	raw := validRawJob()
	raw.RepoFullName = "not-a-full-name"
	_, err := ValidateJob(raw)
	assert.Error(t, err)
}

func TestValidateJob_RejectsBadHeadSHA(t *testing.T) {
	raw := validRawJob()
	raw.HeadSHA = "nothex!!"
	_, err := ValidateJob(raw)
	assert.Error(t, err)
}

func TestValidateJob_RejectsBadBaseSHA(t *testing.T) {
	raw := validRawJob()
	raw.BaseSHA = "xyz"
	_, err := ValidateJob(raw)
	assert.Error(t, err)
}

func TestValidateJob_RejectsBadRef(t *testing.T) {
	raw := validRawJob()
	raw.HeadRef = ""
	_, err := ValidateJob(raw)
	assert.Error(t, err)
}

func TestValidateJob_RejectsNonHTTPSCloneURL(t *testing.T) {
	raw := validRawJob()
	raw.CloneURL = "git://github.com/octo/widgets.git"
	_, err := ValidateJob(raw)
	assert.Error(t, err)
}

func TestValidateJob_RejectsMissingHost(t *testing.T) {
	raw := validRawJob()
	raw.CloneURL = "https:///widgets.git"
	_, err := ValidateJob(raw)
	assert.Error(t, err)
}

func TestValidateJob_RejectsNonPositiveInstallationID(t *testing.T) {
	raw := validRawJob()
	raw.InstallationID = 0
	_, err := ValidateJob(raw)
	assert.Error(t, err)
}

func TestValidateJob_DefaultsMissingPRTitleAndAuthor(t *testing.T) {
	raw := validRawJob()
	raw.PRTitle = nil
	raw.PRAuthor = nil
	job, err := ValidateJob(raw)
	require.NoError(t, err)
	assert.Equal(t, "", job.PRTitle)
	assert.Equal(t, "unknown", job.PRAuthor)
}

func TestValidateJob_DefaultsEnqueuedAtOnParseFailure(t *testing.T) {
	raw := validRawJob()
	raw.EnqueuedAt = strPtr("not-a-timestamp")
	job, err := ValidateJob(raw)
	require.NoError(t, err)
	assert.True(t, job.EnqueuedAt.IsZero())
}

func TestValidateJob_DefaultsEnqueuedAtWhenNil(t *testing.T) {
	raw := validRawJob()
	raw.EnqueuedAt = nil
	job, err := ValidateJob(raw)
	require.NoError(t, err)
	assert.True(t, job.EnqueuedAt.IsZero())
}

func TestValidateJob_ParsesValidEnqueuedAt(t *testing.T) {
	raw := validRawJob()
	job, err := ValidateJob(raw)
	require.NoError(t, err)
	want, _ := time.Parse(time.RFC3339, "2026-07-31T12:00:00Z")
	assert.True(t, job.EnqueuedAt.Equal(want))
}

func TestValidateJobPayload_RejectsEmptyRepoFullName(t *testing.T) {
	job, err := ValidateJob(validRawJob())
	require.NoError(t, err)
	job.RepoFullName = ""
	assert.Error(t, ValidateJobPayload(job))
}

func TestValidateJobPayload_AcceptsValid(t *testing.T) {
	job, err := ValidateJob(validRawJob())
	require.NoError(t, err)
	assert.NoError(t, ValidateJobPayload(job))
}

func TestValidateRefAndSHA_RejectsShortSHA(t *testing.T) {
	assert.Error(t, ValidateRefAndSHA("main", "abc123"))
}

func TestValidateRefAndSHA_RejectsRefWithLeadingDash(t *testing.T) {
	assert.Error(t, ValidateRefAndSHA("-oops", "0123456789abcdef0123456789abcdef01234567"))
}

func TestValidateRefAndSHA_AcceptsValid(t *testing.T) {
	assert.NoError(t, ValidateRefAndSHA("main", "0123456789abcdef0123456789abcdef01234567"))
}

func TestValidateRefAndSHA_AcceptsShortSHABoundary(t *testing.T) {
	assert.NoError(t, ValidateRefAndSHA("main", "0123456"))
}
