package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/slplayer/sltemplate/pkg/sltmpl"
)

func TestBuiltinsLoad(t *testing.T) {
	for _, name := range []string{"dockerfile", "manifest", "page"} {
		if _, err := Get(name); err != nil {
			t.Errorf("Get(%q): %v", name, err)
		}
	}
	if _, err := Get("nope"); err == nil {
		t.Error("Expected error for unknown template")
	}
}

func TestDockerfileDefaults(t *testing.T) {
	tpl, err := Get("dockerfile")
	if err != nil {
		t.Fatal(err)
	}
	out, err := tpl.Execute(map[string]any{"binary": "server", "port": 8080}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{
		"FROM alpine:3.20\n",
		"COPY server /app/server\n",
		"EXPOSE 8080\n",
		`ENTRYPOINT ["/app/server"]`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = tpl.Execute(map[string]any{"binary": "x", "workdir": "/srv"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.Contains(out, "EXPOSE") || !strings.Contains(out, `ENTRYPOINT ["/srv/x"]`) {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestMissingRequiredArgument(t *testing.T) {
	tpl, err := Get("dockerfile")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tpl.Execute(map[string]any{}, nil); err == nil || !strings.Contains(err.Error(), "binary") {
		t.Fatalf("expected missing argument error, got %v", err)
	}
}

func TestManifestIsJSON(t *testing.T) {
	tpl, err := Get("manifest")
	if err != nil {
		t.Fatal(err)
	}
	out, err := tpl.Execute(map[string]any{
		"name":  "demo",
		"files": []map[string]any{{"path": "a.txt", "size": 3}},
	}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, `"version": "0.1.0"`) {
		t.Errorf("default version missing:\n%s", out)
	}
}

func TestSelfReferentialDefault(t *testing.T) {
	tpl := Template{
		Name: "loop",
		Arguments: Arguments{Optional: map[string]sltmpl.TemplateString{
			"a": "::b::",
			"b": "::a::",
		}},
		Body: "::a::",
	}
	if err := tpl.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := tpl.Execute(nil, nil); err == nil || !strings.Contains(err.Error(), "refers to itself") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		tpl  Template
	}{
		{"no name", Template{Body: "x"}},
		{"no body", Template{Name: "x"}},
		{"bad format", Template{Name: "x", Body: "x", Format: "xml"}},
		{"bad body", Template{Name: "x", Body: "::if a::"}},
		{"both", Template{Name: "x", Body: "x", Arguments: Arguments{
			Required: []string{"a"},
			Optional: map[string]sltmpl.TemplateString{"a": "1"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tpl.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestTemplateOverride(t *testing.T) {
	tempDir := t.TempDir()
	overrideContent := `name: page
body: "override ::title::"
arguments:
  required: [title]
`
	if err := os.WriteFile(filepath.Join(tempDir, "page.yaml"), []byte(overrideContent), 0o644); err != nil {
		t.Fatalf("Failed to write override template: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "extra.yaml"), []byte("name: extra\nbody: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	SetTemplateDir(tempDir)
	defer SetTemplateDir("")

	tpl, err := Get("page")
	if err != nil {
		t.Fatalf("Failed to get override template: %v", err)
	}
	out, err := tpl.Execute(map[string]any{"title": "T"}, nil)
	if err != nil || out != "override T" {
		t.Fatalf("got %q, %v", out, err)
	}

	// Names not overridden fall back to the built-in set.
	if _, err := Get("dockerfile"); err != nil {
		t.Fatalf("built-in fallback: %v", err)
	}
	if got := strings.Join(Names(), ","); got != "dockerfile,extra,manifest,page" {
		t.Fatalf("Names() = %q", got)
	}
}
