package location

import "testing"

func TestCounty_FullName(t *testing.T) {
	cases := []struct {
		name string
		c    County
		want string
	}{
		{"plain county", County{Name: "Boone", State: "Iowa"}, "Boone County, Iowa"},
		{"parish", County{Name: "Acadia", State: "Louisiana", IsParish: true}, "Acadia Parish, Louisiana"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.FullName(); got != tc.want {
				t.Errorf("FullName() = %q, want %q", got, tc.want)
			}
		})
	}
}
