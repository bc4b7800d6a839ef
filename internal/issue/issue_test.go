// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"strings"
	"testing"
)

func allIds() []Id {
	return []Id{
		PrivilegeRequiredId,
		ConfigLoadFailedId,
		NoPackageManagerId,
		PackageInstallFailedId,
		ToolDownloadFailedId,
		SourceBuildFailedId,
		InterpreterNotFoundId,
		RequirementsInstallFailedId,
		SearchPathPersistFailedId,
		ToolInstallFailedId,
	}
}

func TestId_Constants(t *testing.T) {
	seen := make(map[Id]bool)
	for _, id := range allIds() {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}

	// IDs start at 1 (iota + 1)
	if PrivilegeRequiredId != 1 {
		t.Errorf("PrivilegeRequiredId = %d, want 1", PrivilegeRequiredId)
	}
}

func TestIssue_Id(t *testing.T) {
	issue := Get(NoPackageManagerId)
	if issue == nil {
		t.Fatal("Get(NoPackageManagerId) returned nil")
	}

	if issue.Id() != NoPackageManagerId {
		t.Errorf("issue.Id() = %d, want %d", issue.Id(), NoPackageManagerId)
	}
}

func TestIssue_ExtLinksAreCloned(t *testing.T) {
	issue := Get(InterpreterNotFoundId)
	if issue == nil {
		t.Fatal("Get(InterpreterNotFoundId) returned nil")
	}

	links := issue.ExtLinks()
	if len(links) == 0 {
		t.Fatal("expected external links")
	}
	original := links[0]
	links[0] = "modified"
	if issue.ExtLinks()[0] != original {
		t.Error("ExtLinks() should return a clone")
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{PrivilegeRequiredId, false, "Administrative rights required"},
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{NoPackageManagerId, false, "No package manager found"},
		{PackageInstallFailedId, false, "Package installation failed"},
		{ToolDownloadFailedId, false, "Tool download failed"},
		{SourceBuildFailedId, false, "Source build failed"},
		{InterpreterNotFoundId, false, "Python not found"},
		{RequirementsInstallFailedId, false, "Python requirements failed"},
		{SearchPathPersistFailedId, false, "Could not save PATH"},
		{ToolInstallFailedId, false, "Tool installation failed"},
		{Id(9999), true, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)

			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}

			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}

			if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain '%s'", tt.id, tt.contains)
			}
		})
	}
}

func TestValues(t *testing.T) {
	issues := Values()

	if len(issues) != len(allIds()) {
		t.Errorf("Values() returned %d issues, want %d", len(issues), len(allIds()))
	}

	for _, issue := range issues {
		if issue.Id() == 0 {
			t.Error("found issue with ID 0")
		}
	}
}

func TestIssue_Render_WithLinks(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	testIssue := &Issue{
		id:       Id(9999),
		mdMsg:    "# Test Issue\n\nThis is a test.",
		docLinks: []HttpLink{"https://docs.example.com"},
		extLinks: []HttpLink{"https://external.example.com"},
	}

	rendered, err := testIssue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}

	if !strings.Contains(rendered, "See also") {
		t.Error("Render() with links should contain 'See also'")
	}
	if !strings.Contains(rendered, "https://external.example.com") {
		t.Error("Render() should list external links")
	}
}

func TestIssue_Render_NoLinks(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	testIssue := &Issue{
		id:    Id(9998),
		mdMsg: "# Test Issue\n\nNo links here.",
	}

	rendered, err := testIssue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}

	if strings.Contains(rendered, "See also") {
		t.Error("Render() without links should not contain 'See also'")
	}
}

func TestAllIssuesAreRenderable(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	for _, issue := range Values() {
		if issue.MarkdownMsg() == "" {
			t.Errorf("Issue %d has empty MarkdownMsg", issue.Id())
		}
		rendered, err := issue.Render("")
		if err != nil {
			t.Errorf("Issue %d failed to render: %v", issue.Id(), err)
		}
		if rendered == "" {
			t.Errorf("Issue %d rendered to empty string", issue.Id())
		}
	}
}

func TestIssuesMapCompleteness(t *testing.T) {
	for _, id := range allIds() {
		if Get(id) == nil {
			t.Errorf("Issue with ID %d is not in the issues map", id)
		}
	}
}
