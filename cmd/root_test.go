package cmd

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"land-crawler/config"
	"land-crawler/models"
)

func TestResolveTargets(t *testing.T) {
	cfg := &config.Config{Targets: []string{"1001"}}
	defer func() { flags = rootFlags{} }()

	tests := []struct {
		name string
		args []string
		flag []string
		want []models.Target
	}{
		{"config fallback", nil, nil, []models.Target{"1001"}},
		{"flag", nil, []string{"2001", "2002"}, []models.Target{"2001", "2002"}},
		{"args win", []string{"22065,12345", "777"}, []string{"2001"}, []models.Target{"22065", "12345", "777"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags.targets = tt.flag
			if diff := cmp.Diff(tt.want, resolveTargets(cfg, tt.args)); diff != "" {
				t.Errorf("targets mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
