package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name      string
		raw       string
		expectErr bool
		expected  Endpoint
	}{
		{name: "with port", raw: "fft[3]", expected: Endpoint{Task: "fft", Port: 3}},
		{name: "without port", raw: "adc", expected: Endpoint{Task: "adc", Port: 0}},
		{name: "underscores and digits", raw: "dup_2[15]", expected: Endpoint{Task: "dup_2", Port: 15}},
		{name: "error - empty", raw: "", expectErr: true},
		{name: "error - dotted path", raw: "node.fft[0]", expectErr: true},
		{name: "error - non numeric port", raw: "fft[x]", expectErr: true},
		{name: "error - negative port", raw: "fft[-1]", expectErr: true},
		{name: "error - just hyphen", raw: "-", expectErr: true},
		{name: "error - overflowing port", raw: "fft[99999999999999999999]", expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e, err := Parse(tc.raw)

			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, e)
		})
	}
}

func TestEndpoint_StringRoundTrip(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"fft[0]", "a-b[12]"} {
		e, err := Parse(raw)
		require.NoError(t, err)

		assert.Equal(t, raw, e.String())
	}
}
