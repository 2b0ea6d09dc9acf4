package constants

import "testing"

func TestSplit_Valid(t *testing.T) {
	tests := []struct {
		name  string
		split Split
		want  bool
	}{
		{
			name:  "train is valid",
			split: SplitTrain,
			want:  true,
		},
		{
			name:  "test is valid",
			split: SplitTest,
			want:  true,
		},
		{
			name:  "empty string is invalid",
			split: Split(""),
			want:  false,
		},
		{
			name:  "TRAIN uppercase is invalid",
			split: Split("TRAIN"),
			want:  false,
		},
		{
			name:  "arbitrary string is invalid",
			split: Split("validation"),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.split.Valid(); got != tt.want {
				t.Errorf("Split(%q).Valid() = %v, want %v", tt.split, got, tt.want)
			}
		})
	}
}

func TestSplit_Index(t *testing.T) {
	if SplitTrain.Index() == SplitTest.Index() {
		t.Errorf("train and test must map to different stream indices, both = %d", SplitTrain.Index())
	}
}

func TestColumns(t *testing.T) {
	if len(Columns) != 9 {
		t.Fatalf("len(Columns) = %d, want 9", len(Columns))
	}
	if Columns[0] != "snapshot_day" || Columns[8] != "external_risk_probability" {
		t.Errorf("unexpected column order: %v", Columns)
	}
}
