package metrics

import "testing"

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name              string
		current, previous int64
		want              float64
		wantNil           bool
	}{
		{name: "increase", current: 110, previous: 100, want: 10},
		{name: "decrease", current: 50, previous: 100, want: -50},
		{name: "no change", current: 100, previous: 100, want: 0},
		{name: "zero baseline", current: 500, previous: 0, wantNil: true},
		{name: "negative baseline", current: 500, previous: -100, wantNil: true},
		{name: "drop to zero", current: 0, previous: 200, want: -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentChange(tt.current, tt.previous)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("PercentChange(%d, %d) = %v, want nil", tt.current, tt.previous, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("PercentChange(%d, %d) = nil, want %v", tt.current, tt.previous, tt.want)
			}
			if *got != tt.want {
				t.Errorf("PercentChange(%d, %d) = %v, want %v", tt.current, tt.previous, *got, tt.want)
			}
		})
	}
}

func TestSavingsRate(t *testing.T) {
	tests := []struct {
		name            string
		income, expense int64
		want            float64
	}{
		{name: "half saved", income: 1000, expense: 500, want: 50},
		{name: "overspent", income: 1000, expense: 1500, want: -50},
		{name: "zero income", income: 0, expense: 500, want: 0},
		{name: "negative income", income: -100, expense: 0, want: 0},
		{name: "nothing spent", income: 800, expense: 0, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SavingsRate(tt.income, tt.expense); got != tt.want {
				t.Errorf("SavingsRate(%d, %d) = %v, want %v", tt.income, tt.expense, got, tt.want)
			}
		})
	}
}

func TestSavingsMoM(t *testing.T) {
	tests := []struct {
		name              string
		current, previous int64
		want              float64
		wantNil           bool
	}{
		{name: "improvement", current: 300, previous: 200, want: 50},
		{name: "negative baseline uses magnitude", current: 100, previous: -200, want: 150},
		{name: "zero baseline", current: 100, previous: 0, wantNil: true},
		{name: "worsening from negative", current: -400, previous: -200, want: -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := savingsMoM(tt.current, tt.previous)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("savingsMoM(%d, %d) = %v, want nil", tt.current, tt.previous, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("savingsMoM(%d, %d) = nil, want %v", tt.current, tt.previous, tt.want)
			}
			if *got != tt.want {
				t.Errorf("savingsMoM(%d, %d) = %v, want %v", tt.current, tt.previous, *got, tt.want)
			}
		})
	}
}

func TestSumAmounts(t *testing.T) {
	if got := SumAmounts(nil); got != 0 {
		t.Errorf("SumAmounts(nil) = %d, want 0", got)
	}
	if got := SumAmounts([]int64{100, 250, -50}); got != 300 {
		t.Errorf("SumAmounts = %d, want 300", got)
	}
}

func TestGroupAndSum(t *testing.T) {
	type row struct {
		key    string
		amount int64
	}
	rows := []row{
		{"groceries", 100},
		{"transport", 40},
		{"groceries", 60},
		{"", 999},
		{"rent", 500},
	}

	got := GroupAndSum(rows,
		func(r row) string { return r.key },
		func(r row) int64 { return r.amount })

	want := []Bucket{
		{Key: "groceries", Total: 160},
		{Key: "transport", Total: 40},
		{Key: "rent", Total: 500},
	}
	if len(got) != len(want) {
		t.Fatalf("GroupAndSum returned %d buckets, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
