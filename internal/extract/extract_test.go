package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCandidates_BasicTrackingNumbers(t *testing.T) {
	text := "Your tracking number is 1Z999AA10123456784."
	require.Equal(t, []string{"1Z999AA10123456784"}, Candidates(text))
}

func TestCandidates_GroupedDigits(t *testing.T) {
	text := "USPS: 9400 1000 0000 0000 0000 00"
	require.Contains(t, Candidates(text), "9400 1000 0000 0000 0000 00")
}

func TestCandidates_MultipleNumbers(t *testing.T) {
	text := `
		First package: 1Z999AA10123456784
		Second package: JD014600003828392837
	`
	require.Equal(t,
		[]string{"1Z999AA10123456784", "JD014600003828392837"},
		Candidates(text))
}

func TestCandidates_IgnoresShortNumbers(t *testing.T) {
	require.Empty(t, Candidates("Order #12345 has shipped"))
}

func TestCandidates_IgnoresPhoneNumbers(t *testing.T) {
	require.Empty(t, Candidates("Call me at 555-123-4567"))
	require.Empty(t, Candidates("Call me at 555 123 4567"))
}

func TestCandidates_DedupWithinOneCall(t *testing.T) {
	text := "1Z999AA10123456784 and again 1Z999AA10123456784"
	require.Equal(t, []string{"1Z999AA10123456784"}, Candidates(text))
}

func TestCandidates_RejectsOverlongRuns(t *testing.T) {
	// 40-char run must not be matched piecewise.
	require.Empty(t, Candidates("AAAA000000000000000000000000000000000000"))
}
