package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfirm_UPS(t *testing.T) {
	conf, ok := Confirm("1Z999AA10123456784")
	require.True(t, ok)
	require.Equal(t, CourierUPS, conf.Courier)
	require.Equal(t, "1Z999AA10123456784", conf.TrackingNumber)
	require.Contains(t, conf.TrackingURL, "1Z999AA10123456784")
}

func TestConfirm_UPSBadCheckDigit(t *testing.T) {
	_, ok := Confirm("1Z999AA10123456780")
	require.False(t, ok)
}

func TestConfirm_USPSGrouped(t *testing.T) {
	conf, ok := Confirm("9400 1000 0000 0000 0000 06")
	require.True(t, ok)
	require.Equal(t, CourierUSPS, conf.Courier)
	require.Equal(t, "9400100000000000000006", conf.TrackingNumber)
}

func TestConfirm_USPSBadCheckDigit(t *testing.T) {
	_, ok := Confirm("9400100000000000000001")
	require.False(t, ok)
}

func TestConfirm_USPSInternational(t *testing.T) {
	conf, ok := Confirm("EC123456789US")
	require.True(t, ok)
	require.Equal(t, CourierUSPS, conf.Courier)
	require.Equal(t, "USPS International", conf.Service)
}

func TestConfirm_FedEx(t *testing.T) {
	conf, ok := Confirm("449044304137")
	require.True(t, ok)
	require.Equal(t, CourierFedEx, conf.Courier)
	require.Equal(t, "FedEx Express", conf.Service)

	conf, ok = Confirm("961102098765432109871"[:15])
	require.True(t, ok)
	require.Equal(t, "FedEx Ground", conf.Service)
}

func TestConfirm_Rejects(t *testing.T) {
	for _, s := range []string{"", "12345", "HELLOWORLDHELLO", "1Z999AA1012345678"} {
		_, ok := Confirm(s)
		require.False(t, ok, "expected %q to be rejected", s)
	}
}

func TestExtractTrackingNumbers_EndToEnd(t *testing.T) {
	text := "Shipped! Track it: 1Z999AA10123456784 (also mentioned again: 1Z999AA10123456784)"
	got := ExtractTrackingNumbers(text)
	require.Len(t, got, 1)
	require.Equal(t, CourierUPS, got[0].Courier)
	require.Equal(t, "1Z999AA10123456784", got[0].TrackingNumber)
}

func TestExtractTrackingNumbers_NoFalsePositives(t *testing.T) {
	require.Empty(t, ExtractTrackingNumbers("Order #12345, call 555-123-4567"))
}
