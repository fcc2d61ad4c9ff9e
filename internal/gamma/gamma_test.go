package gamma

import "testing"

func TestClampTemperature(t *testing.T) {
	cases := []struct {
		in, want uint16
	}{
		{0, MinTemperature},
		{999, MinTemperature},
		{4000, 4000},
		{NeutralKelvin, NeutralKelvin},
		{20000, MaxTemperature},
	}
	for _, c := range cases {
		if got := ClampTemperature(c.in); got != c.want {
			t.Errorf("ClampTemperature(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
