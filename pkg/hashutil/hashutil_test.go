package hashutil_test

import (
	"encoding/hex"
	"testing"

	"github.com/rohmanhakim/wayback-robots/pkg/hashutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"
)

func TestHashBytes_KnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		algo     hashutil.HashAlgo
		input    string
		expected string
	}{
		{"sha256 empty", hashutil.HashAlgoSHA256, "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"sha256 abc", hashutil.HashAlgoSHA256, "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"blake3 empty", hashutil.HashAlgoBLAKE3, "", "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := hashutil.HashBytes([]byte(tt.input), tt.algo)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHashBytes_BLAKE3MatchesLibrary(t *testing.T) {
	data := []byte("Disallow: /admin\nDisallow: /private\n")

	result, err := hashutil.HashBytes(data, hashutil.HashAlgoBLAKE3)
	require.NoError(t, err)

	expected := blake3.Sum256(data)
	assert.Equal(t, hex.EncodeToString(expected[:]), result)
}

func TestHashBytes_UnsupportedAlgorithm(t *testing.T) {
	result, err := hashutil.HashBytes([]byte("test data"), "md5")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported hash algorithm")
	assert.Empty(t, result)
}

func TestParseHashAlgo(t *testing.T) {
	tests := []struct {
		input   string
		want    hashutil.HashAlgo
		wantErr bool
	}{
		{"blake3", hashutil.HashAlgoBLAKE3, false},
		{"SHA256", hashutil.HashAlgoSHA256, false},
		{" Blake3 ", hashutil.HashAlgoBLAKE3, false},
		{"md5", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := hashutil.ParseHashAlgo(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
