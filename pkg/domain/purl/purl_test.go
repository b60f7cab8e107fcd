package purl

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    PURL
		wantErr bool
	}{
		{
			name:  "type and name only",
			input: "pkg:npm/acme",
			want:  PURL{Type: "npm", Name: "acme"},
		},
		{
			name:  "namespace and version",
			input: "pkg:npm/@acme/core@1.0.0",
			want:  PURL{Type: "npm", Namespace: "@acme", Name: "core", Version: "1.0.0"},
		},
		{
			name:  "deep namespace",
			input: "pkg:golang/github.com/acme/core@v1.2.3",
			want:  PURL{Type: "golang", Namespace: "github.com/acme", Name: "core", Version: "v1.2.3"},
		},
		{
			name:  "qualifiers and subpath",
			input: "pkg:rpm/redhat/openssl@1.1.1k?arch=x86_64&distro=rhel-9#lib",
			want: PURL{
				Type: "rpm", Namespace: "redhat", Name: "openssl", Version: "1.1.1k",
				Qualifiers: map[string]string{"arch": "x86_64", "distro": "rhel-9"},
				Subpath:    "lib",
			},
		},
		{
			name:  "type folded to lowercase",
			input: "pkg:NPM/acme",
			want:  PURL{Type: "npm", Name: "acme"},
		},
		{name: "missing scheme", input: "npm/acme", wantErr: true},
		{name: "missing name", input: "pkg:npm", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Type != tt.want.Type || got.Namespace != tt.want.Namespace ||
				got.Name != tt.want.Name || got.Version != tt.want.Version ||
				got.Subpath != tt.want.Subpath {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
			for k, v := range tt.want.Qualifiers {
				if got.Qualifiers[k] != v {
					t.Errorf("qualifier %q = %q, want %q", k, got.Qualifiers[k], v)
				}
			}
		})
	}
}

func TestBaseString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"pkg:npm/acme@1.0.0", "pkg:npm/acme"},
		{"pkg:npm/@acme/core@1.0.0?foo=bar", "pkg:npm/@acme/core"},
		{"pkg:maven/org.acme/core@2.1?type=jar#sub", "pkg:maven/org.acme/core"},
	}
	for _, tt := range tests {
		p, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
		}
		if got := p.BaseString(); got != tt.want {
			t.Errorf("BaseString(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		template string
		instance string
		want     bool
	}{
		{
			name:     "exact match",
			template: "pkg:npm/acme@1.0.0",
			instance: "pkg:npm/acme@1.0.0",
			want:     true,
		},
		{
			name:     "template without version matches any instance version",
			template: "pkg:npm/acme",
			instance: "pkg:npm/acme@1.0.0",
			want:     true,
		},
		{
			name:     "instance without version matches any template version",
			template: "pkg:npm/acme@1.0.0",
			instance: "pkg:npm/acme",
			want:     true,
		},
		{
			name:     "version conflict fails",
			template: "pkg:npm/acme@1.0.0",
			instance: "pkg:npm/acme@2.0.0",
			want:     false,
		},
		{
			name:     "name mismatch fails",
			template: "pkg:npm/acme",
			instance: "pkg:npm/other",
			want:     false,
		},
		{
			name:     "namespace mismatch fails",
			template: "pkg:npm/@acme/core",
			instance: "pkg:npm/@other/core",
			want:     false,
		},
		{
			name:     "type mismatch fails",
			template: "pkg:npm/acme",
			instance: "pkg:pypi/acme",
			want:     false,
		},
		{
			name:     "instance-only qualifier never blocks",
			template: "pkg:rpm/redhat/openssl",
			instance: "pkg:rpm/redhat/openssl?arch=x86_64",
			want:     true,
		},
		{
			name:     "template-only qualifier never blocks",
			template: "pkg:rpm/redhat/openssl?arch=x86_64",
			instance: "pkg:rpm/redhat/openssl",
			want:     true,
		},
		{
			name:     "conflicting qualifier values fail",
			template: "pkg:rpm/redhat/openssl?arch=x86_64",
			instance: "pkg:rpm/redhat/openssl?arch=aarch64",
			want:     false,
		},
		{
			name:     "equal qualifier values pass",
			template: "pkg:rpm/redhat/openssl?arch=x86_64",
			instance: "pkg:rpm/redhat/openssl?arch=x86_64",
			want:     true,
		},
		{
			name:     "empty qualifier value is a free pass",
			template: "pkg:rpm/redhat/openssl?arch=",
			instance: "pkg:rpm/redhat/openssl?arch=aarch64",
			want:     true,
		},
		{
			name:     "subpath compared only when both set",
			template: "pkg:npm/acme#lib",
			instance: "pkg:npm/acme",
			want:     true,
		},
		{
			name:     "subpath conflict fails",
			template: "pkg:npm/acme#lib",
			instance: "pkg:npm/acme#cli",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesString(tt.template, tt.instance); got != tt.want {
				t.Errorf("MatchesString(%q, %q) = %v, want %v", tt.template, tt.instance, got, tt.want)
			}
		})
	}
}

func TestMatchesStringUnparseable(t *testing.T) {
	if MatchesString("not-a-purl", "pkg:npm/acme") {
		t.Error("unparseable template should not match")
	}
	if MatchesString("pkg:npm/acme", "not-a-purl") {
		t.Error("unparseable instance should not match")
	}
}
