package capability

import (
	"reflect"
	"testing"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		scope string
		want  []Capability
	}{
		{"chat.query", []Capability{Ask}},
		{"chat.query chat.upload", []Capability{Ask, Upload}},
		{"ask upload", []Capability{Ask, Upload}},
		{"chat.query chat.query", []Capability{Ask}},
		{"list_files download_file", nil},
		{"chat.query list_files", []Capability{Ask}},
		{"bogus", nil},
		{"", nil},
	}

	for _, tt := range tests {
		if got := ParseScope(tt.scope); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseScope(%q) = %v, want %v", tt.scope, got, tt.want)
		}
	}
}

func TestValidateIntersection(t *testing.T) {
	tests := []struct {
		name      string
		requested []Capability
		allowed   []string
		want      []Capability
	}{
		{"full grant", []Capability{Ask, Upload}, []string{"ask", "upload"}, []Capability{Ask, Upload}},
		{"narrowed", []Capability{Ask, Upload}, []string{"ask"}, []Capability{Ask}},
		{"nothing allowed", []Capability{Ask}, nil, nil},
		{"nothing requested", nil, []string{"ask", "upload"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validate(tt.requested, tt.allowed); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Denied capabilities must be stripped even when the stored allow-list was
// tampered with to include them.
func TestValidateDenylistInvariance(t *testing.T) {
	poisoned := []string{"ask", "upload", "list_files", "download_file"}
	requested := []Capability{Ask, Capability("list_files"), Capability("download_file"), Upload}

	got := Validate(requested, poisoned)
	for _, c := range got {
		if c == "list_files" || c == "download_file" {
			t.Fatalf("denied capability %q survived validation", c)
		}
	}
	if !reflect.DeepEqual(got, []Capability{Ask, Upload}) {
		t.Errorf("Validate() = %v, want [ask upload]", got)
	}
}

func TestScopeStringRoundTrip(t *testing.T) {
	s := ScopeString([]Capability{Upload, Ask})
	if s != "chat.query chat.upload" {
		t.Errorf("ScopeString = %q", s)
	}
	if got := ParseScope(s); !reflect.DeepEqual(got, []Capability{Ask, Upload}) {
		t.Errorf("round trip = %v", got)
	}
}

func TestFromNamesDropsStale(t *testing.T) {
	got := FromNames([]string{"ask", "list_files", "made_up"})
	if !reflect.DeepEqual(got, []Capability{Ask}) {
		t.Errorf("FromNames = %v, want [ask]", got)
	}
}
