package oauthhelper

import "testing"

func TestRedirectAddr(t *testing.T) {
	cases := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{uri: "http://127.0.0.1:8765/callback", want: "127.0.0.1:8765"},
		{uri: "http://localhost/callback", want: "localhost:80"},
		{uri: "http://%zz/callback", wantErr: true},
		{uri: "http:///callback", wantErr: true},
	}

	for _, tc := range cases {
		got, err := redirectAddr(tc.uri)
		if tc.wantErr {
			if err == nil {
				t.Errorf("redirectAddr(%q): expected error, got %q", tc.uri, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("redirectAddr(%q): unexpected error: %v", tc.uri, err)
		}
		if got != tc.want {
			t.Errorf("redirectAddr(%q) = %q, want %q", tc.uri, got, tc.want)
		}
	}
}

func TestRandomStateIsUnpredictableAndHex(t *testing.T) {
	a, err := randomState()
	if err != nil {
		t.Fatalf("randomState: %v", err)
	}
	b, err := randomState()
	if err != nil {
		t.Fatalf("randomState: %v", err)
	}
	if a == b {
		t.Fatalf("randomState produced the same value twice: %q", a)
	}
	if len(a) != 32 {
		t.Fatalf("randomState length = %d, want 32 (16 bytes hex-encoded)", len(a))
	}
}
