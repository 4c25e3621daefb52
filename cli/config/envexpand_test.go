package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("VPD_TEST_SET", "bmc0")
	t.Setenv("VPD_TEST_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{"host: ${VPD_TEST_SET}", "host: bmc0"},
		{"host: ${VPD_TEST_UNSET_1234}", "host: "},
		{"host: ${VPD_TEST_UNSET_1234:-local}", "host: local"},
		{"host: ${VPD_TEST_SET:-local}", "host: bmc0"},
		{"host: ${VPD_TEST_EMPTY:-local}", "host: local"},
		{"${VPD_TEST_SET}/${VPD_TEST_SET}", "bmc0/bmc0"},
		{"url: redis://${VPD_TEST_UNSET_1234:-localhost:6379}/0", "url: redis://localhost:6379/0"},
		{"literal $VPD_TEST_SET", "literal $VPD_TEST_SET"},
		{"broken ${VPD_TEST_SET", "broken ${VPD_TEST_SET"},
	}
	for _, tt := range tests {
		if got := ExpandEnv(tt.in); got != tt.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
