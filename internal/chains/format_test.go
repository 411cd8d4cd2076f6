package chains

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0.0"},
		{"1", "0.0"},
		{"1000000000000000000", "1.0"},
		{"1234567890000000000", "1.2345"},
		{"1239999999999999999", "1.2399"},
		{"500000000000000000", "0.5"},
		{"100000000000000", "0.0001"},
		{"99999999999999", "0.0"},
		{"42000000000000000000000", "42000.0"},
		{"-1500000000000000000", "-1.5"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatUnits(wei(tc.in), 18, 4), tc.in)
	}
	assert.Equal(t, "0.0", FormatUnits(nil, 18, 4))
}

func TestParseUnits(t *testing.T) {
	v, err := ParseUnits("1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", v.String())

	v, err = ParseUnits(" 2 ", 18)
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", v.String())

	v, err = ParseUnits(".25", 2)
	require.NoError(t, err)
	assert.Equal(t, "25", v.String())

	for _, bad := range []string{"", "-1", "1.2.3", "abc", "0.0000000000000000001"} {
		_, err := ParseUnits(bad, 18)
		assert.Error(t, err, bad)
	}
}
